// Package google implements the provider client for the Gemini API using
// the GenAI SDK.
package google

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/utc"
	"google.golang.org/genai"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
)

func init() {
	providers.Register("google", func(cfg providers.Config) providers.Client {
		return New(cfg)
	})
}

// Client talks to the Gemini API via the GenAI SDK. The SDK client is
// created lazily because construction needs a context.
type Client struct {
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

var _ providers.Client = (*Client)(nil)

// New creates a Google client.
func New(cfg providers.Config) *Client {
	return &Client{apiKey: cfg.APIKey}
}

// Provider returns the registry name of this client.
func (c *Client) Provider() string { return "google" }

// Initialize builds the SDK client and probes the listing with a single
// page. The google strategy is api_discovery: scans call this before the
// full listing.
func (c *Client) Initialize(ctx context.Context) error {
	client, err := c.getOrCreateClient(ctx)
	if err != nil {
		return err
	}

	_, err = client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	if err != nil {
		return errors.WrapFetch("google", "models.list", 0, err)
	}
	return nil
}

// DiscoverModels lists base models, following SDK pagination. With
// opts.Full it also lists tuned models.
func (c *Client) DiscoverModels(ctx context.Context, opts providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
	client, err := c.getOrCreateClient(ctx)
	if err != nil {
		return nil, err
	}

	models, err := c.listAll(ctx, client, true)
	if err != nil {
		return nil, err
	}

	if opts.Full {
		tuned, err := c.listAll(ctx, client, false)
		if err != nil {
			// Tuned listing needs extra scopes; base results still stand.
			return models, nil
		}
		models = append(models, tuned...)
	}

	return models, nil
}

// TestModel probes a single model via Models.Get.
func (c *Client) TestModel(ctx context.Context, id string, mode providers.TestMode) (*providers.TestReport, error) {
	report := &providers.TestReport{
		Provider:  "google",
		ModelID:   id,
		Mode:      mode,
		Status:    catalog.ValidationFailed,
		CheckedAt: utc.Now(),
	}

	client, err := c.getOrCreateClient(ctx)
	if err != nil {
		return report, err
	}

	name := id
	if !strings.Contains(name, "/") {
		name = "models/" + name
	}

	start := time.Now()
	m, err := client.Models.Get(ctx, name, &genai.GetModelConfig{})
	report.Latency = time.Since(start)
	if err != nil {
		report.Message = err.Error()
		return report, nil
	}

	report.Available = true
	report.Status = catalog.ValidationPassed
	if mode == providers.TestFull && len(m.SupportedActions) == 0 {
		report.Status = catalog.ValidationPartial
		report.Message = "model advertises no supported actions"
	}
	return report, nil
}

// getOrCreateClient builds the SDK client on first use.
func (c *Client) getOrCreateClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, errors.NewAuthenticationError("google", "api_key", "API key required for the Gemini API", errors.ErrAPIKeyRequired)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  c.apiKey,
	})
	if err != nil {
		return nil, errors.WrapFetch("google", "client", 0, err)
	}

	c.client = client
	return client, nil
}

// listAll walks every page of one listing (base or tuned).
func (c *Client) listAll(ctx context.Context, client *genai.Client, queryBase bool) ([]catalog.ModelRecord, error) {
	var models []catalog.ModelRecord
	pageToken := ""

	for {
		config := &genai.ListModelsConfig{
			QueryBase: genai.Ptr(queryBase),
			PageSize:  100,
		}
		if pageToken != "" {
			config.PageToken = pageToken
		}

		page, err := client.Models.List(ctx, config)
		if err != nil {
			return nil, errors.WrapFetch("google", "models.list", 0, err)
		}

		for _, m := range page.Items {
			models = append(models, convert(m))
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return models, nil
}

// convert maps one SDK model to the canonical record.
func convert(m *genai.Model) catalog.ModelRecord {
	id := extractModelID(m.Name)

	rec := catalog.ModelRecord{
		ID:          id,
		Name:        m.DisplayName,
		Provider:    "google",
		Author:      "google",
		Description: m.Description,
		Task:        inferTask(id, m.SupportedActions),
	}
	if rec.Name == "" {
		rec.Name = id
	}
	if m.InputTokenLimit > 0 {
		rec.ContextLength = int(m.InputTokenLimit)
	}
	rec.Capabilities = inferCapabilities(id, m.SupportedActions)
	return rec
}

// extractModelID strips the resource prefix: models/gemini-pro → gemini-pro.
func extractModelID(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// inferTask derives the primary task from supported actions.
func inferTask(id string, actions []string) string {
	for _, action := range actions {
		if strings.EqualFold(action, "embedContent") {
			return "embedding"
		}
	}
	if strings.Contains(strings.ToLower(id), "embedding") {
		return "embedding"
	}
	return "text-generation"
}

// inferCapabilities maps supported actions and id patterns to capabilities.
func inferCapabilities(id string, actions []string) []string {
	var caps []string
	for _, action := range actions {
		switch {
		case strings.EqualFold(action, "generateContent"):
			caps = append(caps, "chat")
		case strings.EqualFold(action, "streamGenerateContent"):
			caps = append(caps, "streaming")
		case strings.EqualFold(action, "embedContent"):
			caps = append(caps, "embedding")
		}
	}

	idLower := strings.ToLower(id)
	if strings.Contains(idLower, "gemini") && !strings.Contains(idLower, "embedding") {
		caps = append(caps, "vision", "function-calling")
	}
	return caps
}
