package modelscout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/aggregator"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/filter"
	"github.com/modelscout/modelscout/pkg/logging"
	"github.com/modelscout/modelscout/pkg/scanner"
)

// PipelineConfig collects the per-stage options of one pipeline run.
type PipelineConfig struct {
	Scan      scanner.Options
	Aggregate aggregator.Options
	Refine    filter.Options

	// SkipPersist leaves the outcome out of the artifact store.
	SkipPersist bool
}

// PipelineOption adjusts one pipeline run.
type PipelineOption func(*PipelineConfig)

func newPipelineConfig(opts ...PipelineOption) *PipelineConfig {
	cfg := &PipelineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// PipelineScan applies scan options to the pipeline's scan stage.
func PipelineScan(opts ...ScanOption) PipelineOption {
	return func(c *PipelineConfig) {
		for _, opt := range opts {
			opt(&c.Scan)
		}
	}
}

// PipelineAggregate applies aggregation options to the pipeline's
// aggregation stage.
func PipelineAggregate(opts ...AggregateOption) PipelineOption {
	return func(c *PipelineConfig) {
		for _, opt := range opts {
			opt(&c.Aggregate)
		}
	}
}

// PipelineRefine applies refinement options to the pipeline's refine stage.
func PipelineRefine(opts ...RefineOption) PipelineOption {
	return func(c *PipelineConfig) {
		for _, opt := range opts {
			opt(&c.Refine)
		}
	}
}

// PipelineSkipPersist keeps the outcome out of the artifact store.
func PipelineSkipPersist() PipelineOption {
	return func(c *PipelineConfig) { c.SkipPersist = true }
}

// PipelineResult ties together the stage outcomes of one run.
type PipelineResult struct {
	SessionID   string                     `json:"session_id"`
	Scan        *catalog.MultiScanResult   `json:"scan"`
	Aggregation *catalog.AggregationResult `json:"aggregation"`
	Refinement  *filter.Result             `json:"refinement"`
	ResultID    string                     `json:"result_id,omitempty"`
	Duration    time.Duration              `json:"duration"`
}

// Pipeline runs scan, aggregate, and refine as one tracked session using
// staged execution. Per-provider scan failures become session warnings; a
// stage failure marks the session failed and aborts the run.
func (s *scout) Pipeline(ctx context.Context, opts ...PipelineOption) (*PipelineResult, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	// Step 1: Parse options
	cfg := newPipelineConfig(opts...)

	// Step 2: Resolve the provider set
	names := cfg.Scan.Providers
	if len(names) == 0 {
		names = providers.List()
	}

	// Step 3: Start the tracked session and bind it to the scan
	sess, err := s.tracker.StartTracking(names, scanParams(cfg.Scan, len(names)))
	if err != nil {
		return nil, err
	}
	sid := sess.SessionID
	cfg.Scan.Providers = names
	cfg.Scan.SessionID = sid
	ctx = logging.WithSessionID(logging.WithLogger(ctx, &s.logger), sid)
	log := logging.Ctx(ctx)

	fail := func(cause error) (*PipelineResult, error) {
		if ferr := s.tracker.Fail(sid, cause); ferr != nil {
			log.Warn().Err(ferr).Msg("session failure not recorded")
		}
		return nil, cause
	}

	// Step 4: Scan all providers
	s.phase(sid, "scanning", 0)
	multi, err := s.scanner.ScanAllProviders(ctx, cfg.Scan)
	if err != nil {
		return fail(err)
	}
	for name, msg := range multi.Failures {
		if werr := s.tracker.AddWarning(sid, fmt.Sprintf("%s: %s", name, msg)); werr != nil {
			log.Warn().Err(werr).Msg("scan warning not recorded")
		}
	}

	// Step 5: Materialize per-source batches, streamed output included
	batches, collected, err := s.sourceBatches(multi)
	if err != nil {
		return fail(err)
	}

	// Step 6: Aggregate into one deduplicated catalog
	s.phase(sid, "aggregating", collected)
	agg, err := s.aggregator.Aggregate(ctx, batches, cfg.Aggregate)
	if err != nil {
		return fail(err)
	}

	// Step 7: Refine and categorize
	s.phase(sid, "refining", int64(len(agg.Models)))
	refined, err := s.filter.Apply(agg.Models, cfg.Refine)
	if err != nil {
		return fail(err)
	}

	// Step 8: Fold the refined distributions back into the aggregation
	agg.QualityDistribution = refined.QualityDistribution
	agg.CategoryDistribution = refined.CategoryDistribution

	result := &PipelineResult{
		SessionID:   sid,
		Scan:        multi,
		Aggregation: agg,
		Refinement:  refined,
	}

	// Step 9: Persist the outcome, best effort
	if s.store != nil && !cfg.SkipPersist {
		s.phase(sid, "persisting", 1)
		if _, perr := s.store.WriteJSON(storage.KindResult, agg.ResultID, result); perr != nil {
			log.Warn().Err(perr).Str("result_id", agg.ResultID).Msg("pipeline result not persisted")
			if werr := s.tracker.AddWarning(sid, fmt.Sprintf("persist: %v", perr)); werr != nil {
				log.Warn().Err(werr).Msg("persist warning not recorded")
			}
		} else {
			result.ResultID = agg.ResultID
		}
	}

	// Step 10: Close out the session
	if cerr := s.tracker.Complete(sid); cerr != nil {
		log.Warn().Err(cerr).Msg("session completion not recorded")
	}
	result.Duration = time.Since(start)

	log.Info().
		Int("providers", len(names)).
		Int("failures", len(multi.Failures)).
		Int64("collected", collected).
		Int("aggregated", len(agg.Models)).
		Int("refined", refined.Kept).
		Dur("duration", result.Duration).
		Msg("pipeline completed")

	return result, nil
}

// sourceBatches turns a multi-provider scan into aggregator input, loading
// streamed hub output back from the artifact store. Batches come out sorted
// by provider so aggregation order is stable.
func (s *scout) sourceBatches(multi *catalog.MultiScanResult) ([]aggregator.SourceBatch, int64, error) {
	names := make([]string, 0, len(multi.Results))
	for name := range multi.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	var collected int64
	batches := make([]aggregator.SourceBatch, 0, len(names))
	for _, name := range names {
		models, err := s.loadModels(multi.Results[name])
		if err != nil {
			return nil, 0, err
		}
		collected += int64(len(models))
		batches = append(batches, aggregator.SourceBatch{Source: name, Models: models})
	}
	return batches, collected, nil
}

// phase records a stage transition on the session, resetting the stage meter.
func (s *scout) phase(sessionID, name string, total int64) {
	if err := s.tracker.UpdateProgress(sessionID, 0, total, name); err != nil {
		s.logger.Debug().Err(err).Str("phase", name).Msg("phase transition not recorded")
	}
}

// scanParams derives the session's recorded parameters from scan options.
func scanParams(o scanner.Options, providerCount int) catalog.ScanParams {
	params := catalog.ScanParams{
		BatchSize:   o.BatchSize,
		Concurrency: 1,
	}
	if params.BatchSize <= 0 {
		params.BatchSize = constants.DefaultBatchSize
	}
	if o.Parallel {
		params.Concurrency = providerCount
	}
	return params
}
