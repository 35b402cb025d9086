// Package providers defines the client interface every model source
// implements, the registry holding the closed set of provider variants,
// and the per-provider scan strategy table.
//
// Provider packages register themselves in their init functions; importing
// github.com/modelscout/modelscout/internal/providers/all pulls in the full
// set.
package providers

import (
	"context"
	"time"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/pkg/catalog"
)

// Client is the interface every provider implementation satisfies.
// Implementations map their raw API payloads to ModelRecords themselves;
// normalization and deduplication happen downstream in the aggregator.
type Client interface {
	// Provider returns the registry name of this client.
	Provider() string

	// Initialize verifies credentials and endpoint reachability without
	// fetching the full catalog.
	Initialize(ctx context.Context) error

	// DiscoverModels fetches one listing call and maps it to records.
	// Fixed-catalog providers ignore Offset and Limit.
	DiscoverModels(ctx context.Context, opts DiscoverOptions) ([]catalog.ModelRecord, error)

	// TestModel probes a single model for availability.
	TestModel(ctx context.Context, id string, mode TestMode) (*TestReport, error)
}

// DiscoverOptions controls one listing call.
type DiscoverOptions struct {
	Offset int64 // Pagination offset; ignored by fixed-catalog providers
	Limit  int   // Page size; zero means the provider default
	Full   bool  // Request extended metadata where the API distinguishes
}

// TestMode selects how thoroughly TestModel probes a model.
type TestMode string

// Test modes.
const (
	// TestQuick checks only that the model exists in the provider listing.
	TestQuick TestMode = "quick"

	// TestFull additionally inspects the advertised capabilities and
	// metadata completeness of the model.
	TestFull TestMode = "full"
)

// TestReport is the outcome of a TestModel probe.
type TestReport struct {
	Provider  string                   `json:"provider"`
	ModelID   string                   `json:"model_id"`
	Mode      TestMode                 `json:"mode"`
	Status    catalog.ValidationStatus `json:"status"`
	Available bool                     `json:"available"`
	Latency   time.Duration            `json:"latency"`
	CheckedAt utc.Time                 `json:"checked_at"`
	Message   string                   `json:"message,omitempty"`
}

// Config carries the credentials and overrides a factory needs to build a
// client. A zero Config is valid for providers that work unauthenticated.
type Config struct {
	APIKey  string
	BaseURL string        // Optional endpoint override
	Timeout time.Duration // Per-request HTTP timeout; zero means the default
}
