// Package huggingface implements the provider client for the Hugging Face
// hub, the large-scale paginated source. Listings are walked in offset/limit
// pages sorted by downloads so scans can resume at a stable offset.
package huggingface

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/transport"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
)

const defaultBaseURL = "https://huggingface.co/api"

func init() {
	providers.Register("huggingface", func(cfg providers.Config) providers.Client {
		return New(cfg)
	})
}

// modelEntry is one hub listing entry. Fields beyond the core set are only
// populated when the listing is requested with full=true.
type modelEntry struct {
	ID           string       `json:"id"`
	Author       string       `json:"author"`
	PipelineTag  string       `json:"pipeline_tag"`
	LibraryName  string       `json:"library_name"`
	Tags         []string     `json:"tags"`
	Downloads    int64        `json:"downloads"`
	Likes        int64        `json:"likes"`
	Private      bool         `json:"private"`
	Gated        gatedFlag    `json:"gated"`
	LastModified time.Time    `json:"lastModified"`
	Config       *modelConfig `json:"config,omitempty"`
	CardData     *cardData    `json:"cardData,omitempty"`
}

type modelConfig struct {
	Architectures []string `json:"architectures"`
	ModelType     string   `json:"model_type"`
}

type cardData struct {
	License string `json:"license"`
}

// gatedFlag absorbs the hub's mixed encoding: false, "auto", or "manual".
type gatedFlag bool

// UnmarshalJSON implements json.Unmarshaler.
func (g *gatedFlag) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	*g = !(s == "false" || s == `""` || s == "null")
	return nil
}

// Client talks to the Hugging Face hub API.
type Client struct {
	baseURL string
	http    *transport.Client
}

var _ providers.Client = (*Client)(nil)

// New creates a hub client. The API key is optional: public listings work
// unauthenticated at a lower rate limit.
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
		http:    transport.New(transport.BearerAuth{}, cfg.APIKey, opts...),
	}
}

// Provider returns the registry name of this client.
func (c *Client) Provider() string { return "huggingface" }

// Initialize probes the listing with a single-item page.
func (c *Client) Initialize(ctx context.Context) error {
	var probe []modelEntry
	if err := c.http.GetJSON(ctx, c.listURL(0, 1, false), &probe); err != nil {
		return errors.WrapFetch("huggingface", "/models", transport.StatusCode(err), err)
	}
	return nil
}

// DiscoverModels fetches one page at opts.Offset. An empty result means the
// scan walked past the end of the listing.
func (c *Client) DiscoverModels(ctx context.Context, opts providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}

	var entries []modelEntry
	url := c.listURL(opts.Offset, limit, opts.Full)
	if err := c.http.GetJSON(ctx, url, &entries); err != nil {
		return nil, errors.WrapFetch("huggingface", "/models", transport.StatusCode(err), err)
	}

	models := make([]catalog.ModelRecord, 0, len(entries))
	for _, e := range entries {
		models = append(models, convert(e))
	}
	return models, nil
}

// TestModel probes a single model page.
func (c *Client) TestModel(ctx context.Context, id string, mode providers.TestMode) (*providers.TestReport, error) {
	start := time.Now()
	report := &providers.TestReport{
		Provider:  "huggingface",
		ModelID:   id,
		Mode:      mode,
		Status:    catalog.ValidationFailed,
		CheckedAt: utc.Now(),
	}

	var entry modelEntry
	err := c.http.GetJSON(ctx, c.baseURL+"/models/"+id, &entry)
	report.Latency = time.Since(start)
	if err != nil {
		report.Message = err.Error()
		if transport.StatusCode(err) == 404 {
			return report, nil
		}
		return report, errors.WrapFetch("huggingface", "/models/"+id, transport.StatusCode(err), err)
	}

	report.Available = true
	report.Status = catalog.ValidationPassed
	if mode == providers.TestFull {
		if entry.PipelineTag == "" && entry.Config == nil {
			report.Status = catalog.ValidationPartial
			report.Message = "model card carries no task or config metadata"
		}
	}
	return report, nil
}

// listURL builds a stable page URL. Sorting by downloads keeps offsets
// meaningful across requests within one scan.
func (c *Client) listURL(offset int64, limit int, full bool) string {
	url := fmt.Sprintf("%s/models?limit=%d&skip=%d&sort=downloads&direction=-1", c.baseURL, limit, offset)
	if full {
		url += "&full=true"
	}
	return url
}

// convert maps one hub entry to the canonical record.
func convert(e modelEntry) catalog.ModelRecord {
	rec := catalog.ModelRecord{
		ID:        e.ID,
		Name:      e.ID,
		Provider:  "huggingface",
		Author:    e.Author,
		Task:      e.PipelineTag,
		Library:   e.LibraryName,
		Tags:      e.Tags,
		Downloads: e.Downloads,
		Likes:     e.Likes,
		Private:   e.Private,
		Gated:     bool(e.Gated),
	}

	// Hub ids are author/name; surface the short name for display and fill
	// a missing author from the prefix.
	if idx := strings.Index(e.ID, "/"); idx > 0 {
		if rec.Author == "" {
			rec.Author = e.ID[:idx]
		}
		rec.Name = e.ID[idx+1:]
	}

	if e.Config != nil && len(e.Config.Architectures) > 0 {
		rec.Architecture = e.Config.Architectures[0]
	}
	if !e.LastModified.IsZero() {
		rec.LastModified = utc.Time{Time: e.LastModified}
	}
	if e.PipelineTag != "" {
		rec.Capabilities = []string{e.PipelineTag}
	}
	return rec
}
