// Package modelscout is the entry point for the ModelScout model discovery
// system. It wires the provider scanners, the deduplicating aggregator, the
// refinement filter, the incremental updater, and the session tracker into
// one client that owns its stores and rate limits.
//
// Every dependency is constructed here and handed down explicitly; there is
// no package-level state beyond the provider registry. Two instances with
// separate storage directories are fully independent.
//
// Example usage:
//
//	scout, err := modelscout.New(
//	    modelscout.WithStorageDir("~/.modelscout/data"),
//	    modelscout.WithProviders(map[string]modelscout.ProviderConfig{
//	        "openai":      {APIKey: os.Getenv("OPENAI_API_KEY")},
//	        "huggingface": {},
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scout.Close()
//
//	scout.OnModelAdded(func(rec catalog.ModelRecord) {
//	    log.Printf("new model: %s", rec.ID)
//	})
//
//	// One-shot discovery across every registered provider.
//	result, err := scout.Pipeline(ctx, modelscout.PipelineScan(
//	    modelscout.ScanParallel(),
//	    modelscout.ScanContinueOnError(),
//	))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("refined catalog: %d models\n", len(result.Refinement.Models))
//
//	// Later: incremental refresh of one provider.
//	delta, err := scout.Update(ctx, "openai")
package modelscout

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout/internal/metrics"
	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/statestore"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/aggregator"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/filter"
	"github.com/modelscout/modelscout/pkg/progress"
	"github.com/modelscout/modelscout/pkg/ratelimit"
	"github.com/modelscout/modelscout/pkg/scanner"
	"github.com/modelscout/modelscout/pkg/updater"

	// Register the provider variants.
	_ "github.com/modelscout/modelscout/internal/providers/all"
)

// Compile-time interface check.
var _ Scout = (*scout)(nil)

// Scout is the top-level client. One instance owns its artifact store, state
// store, rate limiter, and session tracker; Close releases them.
type Scout interface {
	// Scan discovers models from registered providers.
	Scan(ctx context.Context, opts ...ScanOption) (*catalog.MultiScanResult, error)

	// ScanProvider discovers models from a single provider.
	ScanProvider(ctx context.Context, name string, opts ...ScanOption) (*catalog.ScanResult, error)

	// Aggregate deduplicates and merges per-source batches into one catalog.
	Aggregate(ctx context.Context, batches []aggregator.SourceBatch, opts ...AggregateOption) (*catalog.AggregationResult, error)

	// Refine filters and categorizes a model set.
	Refine(ctx context.Context, models []catalog.ModelRecord, opts ...RefineOption) (*filter.Result, error)

	// Update runs incremental change detection and application for one
	// provider against the state store.
	Update(ctx context.Context, provider string, opts ...UpdateOption) (*catalog.DeltaRecord, error)

	// Pipeline runs scan, aggregate, and refine as one tracked session and
	// persists the outcome.
	Pipeline(ctx context.Context, opts ...PipelineOption) (*PipelineResult, error)

	// Sessions exposes the tracker that owns scan sessions and checkpoints.
	Sessions() *progress.Tracker

	// Hooks registers callbacks fired when an applied update changes the
	// catalog.
	Hooks

	// Close releases the state store and winds down active sessions.
	Close() error
}

// scout is the internal implementation of the Scout interface.
type scout struct {
	cfg *config

	logger  zerolog.Logger
	metrics *metrics.Metrics

	store *storage.Store   // artifact store; nil without a storage dir
	state *statestore.Store // catalog state; nil without a state path

	scanner    *scanner.Scanner
	aggregator *aggregator.Aggregator
	filter     *filter.Filter
	updater    *updater.Updater // nil without a state store
	tracker    *progress.Tracker

	*hooks

	closeOnce sync.Once
	closeErr  error
}

// New creates a Scout. Without options it runs fully in memory: fixed-catalog
// scans, aggregation, and refinement work, while hub streaming, session
// persistence, and incremental updates need WithStorageDir or WithStateStore.
func New(opts ...Option) (Scout, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	s := &scout{
		cfg:     cfg,
		logger:  *cfg.logger,
		metrics: cfg.metrics,
		hooks:   newHooks(),
	}

	if cfg.storageDir != "" {
		if s.store, err = storage.New(cfg.storageDir); err != nil {
			return nil, err
		}
		s.logger.Debug().Str("dir", s.store.Root()).Msg("artifact store opened")
	}

	statePath := cfg.statePath
	if statePath == "" && cfg.storageDir != "" {
		statePath = filepath.Join(s.store.Root(), "state.db")
	}
	if statePath != "" {
		if s.state, err = statestore.Open(statePath); err != nil {
			return nil, err
		}
	}

	trackerOpts := []progress.Option{
		progress.WithLogger(s.logger),
		progress.WithMetrics(s.metrics),
	}
	if s.store != nil {
		trackerOpts = append(trackerOpts, progress.WithStorage(s.store))
	}
	if cfg.scheduler != nil {
		trackerOpts = append(trackerOpts, progress.WithScheduler(cfg.scheduler))
	}
	s.tracker = progress.New(trackerOpts...)

	limiter := cfg.limiter
	if limiter == nil {
		limiter = ratelimit.NewTokenBucket(ratelimit.DefaultConfig(), strategyBuckets())
	}

	s.scanner = scanner.New(
		scanner.WithConfigs(providerConfigs(cfg.providerCfgs)),
		scanner.WithLimiter(limiter),
		scanner.WithStorage(s.store),
		scanner.WithStateStore(s.state),
		scanner.WithMetrics(s.metrics),
		scanner.WithProgress(s.tracker),
	)

	aggOpts := []aggregator.Option{}
	if cfg.embedder != nil {
		aggOpts = append(aggOpts, aggregator.WithEmbeddings(cfg.embedder))
	}
	if cfg.mergeConfig != nil {
		aggOpts = append(aggOpts, aggregator.WithMergeConfig(*cfg.mergeConfig))
	}
	if cfg.threshold > 0 {
		aggOpts = append(aggOpts, aggregator.WithThreshold(cfg.threshold))
	}
	if s.aggregator, err = aggregator.New(aggOpts...); err != nil {
		return nil, err
	}

	filterOpts := []filter.Option{filter.WithLogger(s.logger)}
	if len(cfg.rules) > 0 {
		filterOpts = append(filterOpts, filter.WithRules(cfg.rules))
	}
	if s.filter, err = filter.New(filterOpts...); err != nil {
		return nil, err
	}

	if s.state != nil {
		updOpts := []updater.Option{
			updater.WithStorage(s.store),
			updater.WithLogger(s.logger),
			updater.WithMetrics(s.metrics),
		}
		if cfg.interval > 0 {
			updOpts = append(updOpts, updater.WithInterval(cfg.interval))
		}
		if s.updater, err = updater.New(s.state, s.discover, updOpts...); err != nil {
			return nil, err
		}
	}

	s.logger.Debug().
		Bool("artifacts", s.store != nil).
		Bool("state", s.state != nil).
		Int("providers", len(providers.List())).
		Msg("scout ready")

	return s, nil
}

// strategyBuckets derives per-provider token buckets from the scan strategy
// table.
func strategyBuckets() map[string]ratelimit.Config {
	strategies := providers.Strategies()
	out := make(map[string]ratelimit.Config, len(strategies))
	for name, st := range strategies {
		out[name] = ratelimit.Config{
			RequestsPerSecond: st.RequestsPerSec,
			Burst:             st.Burst,
		}
	}
	return out
}

// Sessions exposes the progress tracker.
func (s *scout) Sessions() *progress.Tracker {
	return s.tracker
}

// Close winds down active sessions and releases the state store. It is safe
// to call more than once.
func (s *scout) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.tracker.Close()
		if s.state != nil {
			if err := s.state.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// discover feeds the updater: one complete provider scan, with streamed hub
// output loaded back from its artifact.
func (s *scout) discover(ctx context.Context, provider string) ([]catalog.ModelRecord, error) {
	result, err := s.scanner.ScanProvider(ctx, provider, scanner.Options{})
	if err != nil {
		return nil, err
	}
	return s.loadModels(result)
}

// loadModels materializes a scan result's records. Small scans carry them
// inline; paginated scans name a JSONL stream artifact.
func (s *scout) loadModels(result *catalog.ScanResult) ([]catalog.ModelRecord, error) {
	if result.Stream == "" {
		return result.Models, nil
	}
	if s.store == nil {
		return nil, errors.NewValidationError("stream", result.Stream, "streamed scan output needs an artifact store")
	}

	models := make([]catalog.ModelRecord, 0, result.Stats.Scanned)
	err := s.store.ReadStream(result.Stream, func(line []byte) error {
		var rec catalog.ModelRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		models = append(models, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}
