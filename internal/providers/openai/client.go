// Package openai implements the provider client for OpenAI-compatible
// listing APIs. Besides api.openai.com it backs the groq and mistral
// registry entries, which share the wire shape and differ only in base URL
// and a few extension fields.
package openai

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

func init() {
	providers.Register("openai", func(cfg providers.Config) providers.Client {
		return New("openai", "https://api.openai.com/v1", cfg)
	})
	providers.Register("groq", func(cfg providers.Config) providers.Client {
		return New("groq", "https://api.groq.com/openai/v1", cfg)
	})
	providers.Register("mistral", func(cfg providers.Config) providers.Client {
		return New("mistral", "https://api.mistral.ai/v1", cfg)
	})
}

// listResponse is the common OpenAI-style models listing.
type listResponse struct {
	Object string      `json:"object"`
	Data   []modelData `json:"data"`
}

// modelData is one entry in the listing. The extension fields beyond the
// OpenAI core are returned by compatible APIs (Groq, Mistral) and stay zero
// elsewhere.
type modelData struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`

	// Mistral extensions
	Name             string        `json:"name,omitempty"`
	Description      string        `json:"description,omitempty"`
	MaxContextLength int           `json:"max_context_length,omitempty"`
	Capabilities     *capabilities `json:"capabilities,omitempty"`

	// Groq extensions
	ContextWindow       int   `json:"context_window,omitempty"`
	MaxCompletionTokens int   `json:"max_completion_tokens,omitempty"`
	Active              *bool `json:"active,omitempty"`
}

// capabilities is Mistral's capability block.
type capabilities struct {
	CompletionChat  bool `json:"completion_chat"`
	FunctionCalling bool `json:"function_calling"`
	Vision          bool `json:"vision"`
	FineTuning      bool `json:"fine_tuning"`
}

// Client talks to one OpenAI-compatible API.
type Client struct {
	name    string
	baseURL string
	http    *transport.Client
}

var _ providers.Client = (*Client)(nil)

// New creates a client for a named OpenAI-compatible provider. cfg.BaseURL
// overrides the provider's default endpoint.
func New(name, defaultBaseURL string, cfg providers.Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	var opts []transport.Option
	if cfg.Timeout > 0 {
		opts = append(opts, transport.WithTimeout(cfg.Timeout))
	}

	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    transport.New(transport.BearerAuth{}, cfg.APIKey, opts...),
	}
}

// Provider returns the registry name of this client.
func (c *Client) Provider() string { return c.name }

// Initialize probes the models listing, the cheapest authenticated endpoint
// these APIs expose.
func (c *Client) Initialize(ctx context.Context) error {
	var probe struct {
		Object string `json:"object"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/models", &probe); err != nil {
		return errors.WrapFetch(c.name, "/models", transport.StatusCode(err), err)
	}
	return nil
}

// DiscoverModels fetches the complete fixed catalog. Offset and Limit are
// ignored: these APIs return everything in one response.
func (c *Client) DiscoverModels(ctx context.Context, _ providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
	var result listResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/models", &result); err != nil {
		return nil, errors.WrapFetch(c.name, "/models", transport.StatusCode(err), err)
	}

	models := make([]catalog.ModelRecord, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, c.convert(m))
	}
	return models, nil
}

// TestModel probes a single model. Quick mode checks listing membership;
// full mode additionally grades the capability metadata.
func (c *Client) TestModel(ctx context.Context, id string, mode providers.TestMode) (*providers.TestReport, error) {
	start := time.Now()
	report := &providers.TestReport{
		Provider:  c.name,
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
		return report, errors.WrapFetch(c.name, "/models/"+id, transport.StatusCode(err), err)
	}

	report.Available = true
	report.Status = catalog.ValidationPassed

	if mode == providers.TestFull {
		rec := c.convert(m)
		if len(rec.Capabilities) == 0 && rec.ContextLength == 0 {
			report.Status = catalog.ValidationPartial
			report.Message = "listing carries no capability metadata"
		}
	}
	return report, nil
}

// convert maps one listing entry to the canonical record.
func (c *Client) convert(m modelData) catalog.ModelRecord {
	rec := catalog.ModelRecord{
		ID:       m.ID,
		Name:     m.ID,
		Provider: c.name,
		Author:   normalizeOwner(m.OwnedBy),
		Task:     "text-generation",
	}

	if m.Name != "" {
		rec.Name = m.Name
	}
	rec.Description = m.Description

	switch {
	case m.ContextWindow > 0:
		rec.ContextLength = m.ContextWindow
	case m.MaxContextLength > 0:
		rec.ContextLength = m.MaxContextLength
	}

	if m.Created > 0 {
		rec.LastModified = utc.Time{Time: time.Unix(m.Created, 0).UTC()}
	}

	rec.Capabilities = c.inferCapabilities(m)
	if m.Active != nil && !*m.Active {
		rec.Tags = append(rec.Tags, "inactive")
	}

	return rec
}

// inferCapabilities combines declared capability blocks with conservative
// id-based inference for APIs that declare nothing.
func (c *Client) inferCapabilities(m modelData) []string {
	caps := []string{"chat"}

	if m.Capabilities != nil {
		caps = caps[:0]
		if m.Capabilities.CompletionChat {
			caps = append(caps, "chat")
		}
		if m.Capabilities.FunctionCalling {
			caps = append(caps, "function-calling")
		}
		if m.Capabilities.Vision {
			caps = append(caps, "vision")
		}
		if m.Capabilities.FineTuning {
			caps = append(caps, "fine-tuning")
		}
		return caps
	}

	idLower := strings.ToLower(m.ID)
	switch {
	case strings.Contains(idLower, "embedding"), strings.Contains(idLower, "embed"):
		caps = []string{"embedding"}
	case strings.Contains(idLower, "whisper"):
		caps = []string{"speech-to-text"}
	case strings.Contains(idLower, "tts"):
		caps = []string{"text-to-speech"}
	case strings.Contains(idLower, "dall-e"):
		caps = []string{"text-to-image"}
	default:
		if strings.Contains(idLower, "vision") || strings.Contains(idLower, "4o") {
			caps = append(caps, "vision")
		}
		if strings.Contains(idLower, "gpt-4") || strings.Contains(idLower, "llama") ||
			strings.Contains(idLower, "mixtral") || strings.Contains(idLower, "gemma") {
			caps = append(caps, "function-calling")
		}
	}
	return caps
}

// normalizeOwner folds owner strings like "Meta / DeepSeek" or "openai" to
// a single lowercase kebab-case author.
func normalizeOwner(ownedBy string) string {
	ownedBy = strings.TrimSpace(ownedBy)
	if ownedBy == "" {
		return ""
	}
	if idx := strings.Index(ownedBy, "/"); idx >= 0 {
		ownedBy = strings.TrimSpace(ownedBy[:idx])
	}
	ownedBy = strings.ToLower(ownedBy)
	ownedBy = strings.ReplaceAll(ownedBy, " ", "-")
	return strings.ReplaceAll(ownedBy, "_", "-")
}
