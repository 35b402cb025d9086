// Package anthropic implements the provider client for the Anthropic API.
package anthropic

import (
	"context"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/transport"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
)

// apiVersion is the pinned anthropic-version header value.
const apiVersion = "2023-06-01"

const defaultBaseURL = "https://api.anthropic.com/v1"

func init() {
	providers.Register("anthropic", func(cfg providers.Config) providers.Client {
		return New(cfg)
	})
}

type listResponse struct {
	Data    []modelData `json:"data"`
	HasMore bool        `json:"has_more"`
	LastID  string      `json:"last_id"`
}

type modelData struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Client talks to the Anthropic API.
type Client struct {
	baseURL string
	http    *transport.Client
}

var _ providers.Client = (*Client)(nil)

// New creates an Anthropic client.
func New(cfg providers.Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	opts := []transport.Option{
		transport.WithHeader("anthropic-version", apiVersion),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, transport.WithTimeout(cfg.Timeout))
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    transport.New(transport.HeaderAuth{Header: "x-api-key"}, cfg.APIKey, opts...),
	}
}

// Provider returns the registry name of this client.
func (c *Client) Provider() string { return "anthropic" }

// Initialize probes the models listing with a single-item page.
func (c *Client) Initialize(ctx context.Context) error {
	var probe listResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/models?limit=1", &probe); err != nil {
		return errors.WrapFetch("anthropic", "/models", transport.StatusCode(err), err)
	}
	return nil
}

// DiscoverModels fetches the complete fixed catalog, following the cursor
// when the API pages. Offset and Limit are ignored.
func (c *Client) DiscoverModels(ctx context.Context, _ providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
	var models []catalog.ModelRecord
	afterID := ""

	for {
		url := c.baseURL + "/models?limit=100"
		if afterID != "" {
			url += "&after_id=" + afterID
		}

		var page listResponse
		if err := c.http.GetJSON(ctx, url, &page); err != nil {
			return nil, errors.WrapFetch("anthropic", "/models", transport.StatusCode(err), err)
		}

		for _, m := range page.Data {
			models = append(models, c.convert(m))
		}

		if !page.HasMore || page.LastID == "" {
			break
		}
		afterID = page.LastID
	}

	return models, nil
}

// TestModel probes a single model by id.
func (c *Client) TestModel(ctx context.Context, id string, mode providers.TestMode) (*providers.TestReport, error) {
	start := time.Now()
	report := &providers.TestReport{
		Provider:  "anthropic",
		ModelID:   id,
		Mode:      mode,
		Status:    catalog.ValidationFailed,
		CheckedAt: utc.Now(),
	}

	var m modelData
	err := c.http.GetJSON(ctx, c.baseURL+"/models/"+id, &m)
	report.Latency = time.Since(start)
	if err != nil {
		report.Message = err.Error()
		if transport.StatusCode(err) == 404 {
			return report, nil
		}
		return report, errors.WrapFetch("anthropic", "/models/"+id, transport.StatusCode(err), err)
	}

	report.Available = true
	report.Status = catalog.ValidationPassed
	if mode == providers.TestFull && m.DisplayName == "" {
		report.Status = catalog.ValidationPartial
		report.Message = "listing carries no display name"
	}
	return report, nil
}

// convert maps one listing entry to the canonical record.
func (c *Client) convert(m modelData) catalog.ModelRecord {
	rec := catalog.ModelRecord{
		ID:           m.ID,
		Name:         m.DisplayName,
		Provider:     "anthropic",
		Author:       "anthropic",
		Task:         "text-generation",
		Capabilities: inferCapabilities(m.ID),
	}
	if rec.Name == "" {
		rec.Name = m.ID
	}
	if !m.CreatedAt.IsZero() {
		rec.LastModified = utc.Time{Time: m.CreatedAt}
	}
	return rec
}

// inferCapabilities derives capabilities from the model id; the listing
// itself carries no capability metadata.
func inferCapabilities(modelID string) []string {
	caps := []string{"chat", "function-calling"}

	idLower := strings.ToLower(modelID)
	if strings.Contains(idLower, "claude-3") || strings.Contains(idLower, "claude-opus") ||
		strings.Contains(idLower, "claude-sonnet") || strings.Contains(idLower, "claude-haiku") {
		caps = append(caps, "vision")
	}
	if strings.Contains(idLower, "opus") || strings.Contains(idLower, "sonnet") {
		caps = append(caps, "reasoning")
	}
	return caps
}
