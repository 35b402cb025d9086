// Package artificialanalysis implements the provider client for the
// Artificial Analysis benchmark API. The API is keyed (x-api-key) with a
// daily quota, so the strategy table pins it to one request per second.
package artificialanalysis

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

const defaultBaseURL = "https://artificialanalysis.ai/api/v2"

// Media listing endpoints, fetched in addition to the LLM listing when a
// discovery asks for the full catalog.
var mediaTypes = []string{
	"text-to-image",
	"image-editing",
	"text-to-speech",
	"text-to-video",
	"image-to-video",
}

func init() {
	providers.Register("artificialanalysis", func(cfg providers.Config) providers.Client {
		return New(cfg)
	})
}

type listResponse struct {
	Status int         `json:"status"`
	Data   []modelData `json:"data"`
}

type modelData struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Slug         string        `json:"slug"`
	ModelCreator *modelCreator `json:"model_creator,omitempty"`
	Evaluations  *evaluations  `json:"evaluations,omitempty"`
	Pricing      *pricing      `json:"pricing,omitempty"`

	MedianOutputTokensPerSecond float64 `json:"median_output_tokens_per_second,omitempty"`
	MedianTimeToFirstTokenSec   float64 `json:"median_time_to_first_token_seconds,omitempty"`
}

type modelCreator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type evaluations struct {
	IntelligenceIndex float64 `json:"artificial_analysis_intelligence_index"`
	CodingIndex       float64 `json:"artificial_analysis_coding_index"`
	MathIndex         float64 `json:"artificial_analysis_math_index"`
}

type pricing struct {
	InputPer1M   float64 `json:"price_1m_input_tokens"`
	OutputPer1M  float64 `json:"price_1m_output_tokens"`
	BlendedPer1M float64 `json:"price_1m_blended_3_to_1"`
}

// Client talks to the Artificial Analysis API.
type Client struct {
	baseURL string
	apiKey  string
	http    *transport.Client
}

var _ providers.Client = (*Client)(nil)

// New creates an Artificial Analysis client.
func New(cfg providers.Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	var opts []transport.Option
	if cfg.Timeout > 0 {
		opts = append(opts, transport.WithTimeout(cfg.Timeout))
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    transport.New(transport.HeaderAuth{Header: "x-api-key"}, cfg.APIKey, opts...),
	}
}

// Provider returns the registry name of this client.
func (c *Client) Provider() string { return "artificialanalysis" }

// Initialize checks the API key is present and accepted.
func (c *Client) Initialize(ctx context.Context) error {
	if c.apiKey == "" {
		return errors.NewAuthenticationError("artificialanalysis", "api_key", "x-api-key required", errors.ErrAPIKeyRequired)
	}

	var probe listResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/data/llms/models", &probe); err != nil {
		return errors.WrapFetch("artificialanalysis", "/data/llms/models", transport.StatusCode(err), err)
	}
	return nil
}

// DiscoverModels fetches the LLM listing; with opts.Full it also walks the
// media endpoints. Offset and Limit are ignored: every listing is complete.
func (c *Client) DiscoverModels(ctx context.Context, opts providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
	models, err := c.fetchListing(ctx, "/data/llms/models", "text-generation")
	if err != nil {
		return nil, err
	}

	if opts.Full {
		for _, mediaType := range mediaTypes {
			media, err := c.fetchListing(ctx, "/data/media/"+mediaType, mediaType)
			if err != nil {
				return nil, err
			}
			models = append(models, media...)
		}
	}

	return models, nil
}

// TestModel searches the listing for the model; the API has no per-model
// endpoint.
func (c *Client) TestModel(ctx context.Context, id string, mode providers.TestMode) (*providers.TestReport, error) {
	start := time.Now()
	report := &providers.TestReport{
		Provider:  "artificialanalysis",
		ModelID:   id,
		Mode:      mode,
		Status:    catalog.ValidationFailed,
		CheckedAt: utc.Now(),
	}

	var result listResponse
	err := c.http.GetJSON(ctx, c.baseURL+"/data/llms/models", &result)
	report.Latency = time.Since(start)
	if err != nil {
		report.Message = err.Error()
		return report, errors.WrapFetch("artificialanalysis", "/data/llms/models", transport.StatusCode(err), err)
	}

	for _, m := range result.Data {
		if m.Slug != id && m.ID != id && m.Name != id {
			continue
		}
		report.Available = true
		report.Status = catalog.ValidationPassed
		if mode == providers.TestFull && (m.Pricing == nil || m.Evaluations == nil) {
			report.Status = catalog.ValidationPartial
			report.Message = "benchmark entry missing pricing or evaluations"
		}
		return report, nil
	}

	report.Message = "model not present in benchmark listing"
	return report, nil
}

// fetchListing pulls one listing endpoint and maps entries to records with
// the given task.
func (c *Client) fetchListing(ctx context.Context, path, task string) ([]catalog.ModelRecord, error) {
	var result listResponse
	if err := c.http.GetJSON(ctx, c.baseURL+path, &result); err != nil {
		return nil, errors.WrapFetch("artificialanalysis", path, transport.StatusCode(err), err)
	}

	models := make([]catalog.ModelRecord, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, convert(m, task))
	}
	return models, nil
}

// convert maps one benchmark entry to the canonical record.
func convert(m modelData, task string) catalog.ModelRecord {
	id := m.Slug
	if id == "" {
		id = m.ID
	}

	rec := catalog.ModelRecord{
		ID:       id,
		Name:     m.Name,
		Provider: "artificialanalysis",
		Task:     task,
	}
	if rec.Name == "" {
		rec.Name = id
	}
	if m.ModelCreator != nil {
		rec.Author = m.ModelCreator.Slug
		if rec.Author == "" {
			rec.Author = strings.ToLower(m.ModelCreator.Name)
		}
	}

	if m.Pricing != nil {
		rec.Pricing = map[string]float64{}
		if m.Pricing.InputPer1M > 0 {
			rec.Pricing["input_per_1m"] = m.Pricing.InputPer1M
		}
		if m.Pricing.OutputPer1M > 0 {
			rec.Pricing["output_per_1m"] = m.Pricing.OutputPer1M
		}
		if m.Pricing.BlendedPer1M > 0 {
			rec.Pricing["blended_per_1m"] = m.Pricing.BlendedPer1M
		}
		if len(rec.Pricing) == 0 {
			rec.Pricing = nil
		}
	}

	if task == "text-generation" {
		rec.Capabilities = []string{"chat"}
	} else {
		rec.Capabilities = []string{task}
	}

	if m.Evaluations != nil {
		rec.Tags = append(rec.Tags, "benchmarked")
	}
	return rec
}
