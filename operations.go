package modelscout

import (
	"context"

	"github.com/modelscout/modelscout/pkg/aggregator"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/filter"
	"github.com/modelscout/modelscout/pkg/logging"
)

// Scan discovers models from registered providers. Without ScanProviders it
// covers every registered provider; without ScanParallel providers run
// sequentially in sorted order.
func (s *scout) Scan(ctx context.Context, opts ...ScanOption) (*catalog.MultiScanResult, error) {
	ctx = logging.WithLogger(ctx, &s.logger)
	return s.scanner.ScanAllProviders(ctx, newScanOptions(opts...))
}

// ScanProvider discovers models from a single provider.
func (s *scout) ScanProvider(ctx context.Context, name string, opts ...ScanOption) (*catalog.ScanResult, error) {
	ctx = logging.WithLogger(ctx, &s.logger)
	return s.scanner.ScanProvider(ctx, name, newScanOptions(opts...))
}

// Aggregate deduplicates and merges per-source batches into one catalog.
func (s *scout) Aggregate(ctx context.Context, batches []aggregator.SourceBatch, opts ...AggregateOption) (*catalog.AggregationResult, error) {
	ctx = logging.WithLogger(ctx, &s.logger)
	return s.aggregator.Aggregate(ctx, batches, newAggregateOptions(opts...))
}

// Refine filters and categorizes a model set.
func (s *scout) Refine(ctx context.Context, models []catalog.ModelRecord, opts ...RefineOption) (*filter.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.filter.Apply(models, newRefineOptions(opts...))
}

// Update runs incremental change detection and application for one provider.
// Registered model hooks fire after an applied update, with records resolved
// from the rotated state.
func (s *scout) Update(ctx context.Context, provider string, opts ...UpdateOption) (*catalog.DeltaRecord, error) {
	if s.updater == nil {
		return nil, errors.NewValidationError("state", nil, "updates need a state store; configure WithStorageDir or WithStateStore")
	}

	ctx = logging.WithLogger(ctx, &s.logger)
	delta, err := s.updater.UpdateProvider(ctx, provider, newUpdateOptions(opts...))
	if err != nil {
		return delta, err
	}

	if delta.Applied && !delta.Changes.Empty() {
		s.notifyModelChanges(provider, &delta.Changes)
	}
	return delta, nil
}

// notifyModelChanges resolves the changed records from the state store and
// fires the registered hooks. The update already rotated the catalogs, so
// the previous state lives under LastModels.
func (s *scout) notifyModelChanges(provider string, changes *catalog.ChangeSet) {
	if !s.hooks.active() {
		return
	}

	current, err := s.state.CurrentModels(provider)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider).
			Msg("model hooks skipped: current state unavailable")
		return
	}
	previous, err := s.state.LastModels(provider)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider).
			Msg("model hooks skipped: previous state unavailable")
		return
	}

	s.hooks.notify(previous, current, changes)
}
