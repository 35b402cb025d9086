// Package updater runs incremental catalog refreshes: detect what changed
// for one provider, apply the change set through a fixed per-provider
// applier table, validate the result, and record an immutable DeltaRecord.
// A snapshot taken before application is the rollback baseline; when an
// apply or validation fails after persisting, the snapshot is restored and
// the original error still propagates.
//
// At most one update runs per process. The busy flag prevents concurrent
// updates; it does not queue or resolve them.
package updater

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout/internal/metrics"
	"github.com/modelscout/modelscout/internal/statestore"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
)

// Store is the catalog state the updater reads and writes. The bbolt state
// store satisfies it.
type Store interface {
	CurrentModels(provider string) ([]catalog.ModelRecord, error)
	LastModels(provider string) ([]catalog.ModelRecord, error)
	SaveCurrentModels(provider string, models []catalog.ModelRecord) error
	ReplaceCurrentModels(provider string, models []catalog.ModelRecord) error
	UpdateMeta(provider string) (*catalog.UpdateMeta, error)
	SaveUpdateMeta(meta *catalog.UpdateMeta) error
}

var _ Store = (*statestore.Store)(nil)

// Discoverer fetches a provider's complete current catalog. The root client
// wires this to a provider scan.
type Discoverer func(ctx context.Context, provider string) ([]catalog.ModelRecord, error)

// Applier turns a detected change set into the catalog that becomes current
// for a provider. The dispatch table is fixed when the updater is built;
// nothing registers appliers at update time.
type Applier func(ctx context.Context, existing, updated []catalog.ModelRecord, changes *catalog.ChangeSet) ([]catalog.ModelRecord, error)

// ReplaceApplier adopts the freshly discovered catalog wholesale.
func ReplaceApplier(_ context.Context, _, updated []catalog.ModelRecord, _ *catalog.ChangeSet) ([]catalog.ModelRecord, error) {
	return updated, nil
}

// MergeApplier applies the change set surgically: added and modified models
// adopt the fresh record, models the change set does not mention keep their
// current record, and removals drop out. With a complete fresh catalog this
// converges to the same result as ReplaceApplier; it differs when a caller
// wires a targeted discoverer.
func MergeApplier(_ context.Context, existing, updated []catalog.ModelRecord, changes *catalog.ChangeSet) ([]catalog.ModelRecord, error) {
	freshByID := recordIndex(updated)
	removed := make(map[string]struct{}, len(changes.Removed))
	for _, c := range changes.Removed {
		removed[c.ModelID] = struct{}{}
	}

	out := make([]catalog.ModelRecord, 0, len(existing)+len(changes.Added))
	seen := make(map[string]struct{}, len(existing))
	for i := range existing {
		id := existing[i].ID
		seen[id] = struct{}{}
		if _, gone := removed[id]; gone {
			continue
		}
		if fresh, ok := freshByID[id]; ok {
			out = append(out, *fresh)
		} else {
			out = append(out, existing[i])
		}
	}
	for _, c := range changes.Added {
		if _, dup := seen[c.ModelID]; dup {
			continue
		}
		if fresh, ok := freshByID[c.ModelID]; ok {
			out = append(out, *fresh)
		}
	}
	return out, nil
}

// builtinDetection maps providers to their default detection strategy. The
// hub is too large to diff on every poll; small API catalogs afford a full
// content diff.
var builtinDetection = map[string]catalog.DetectionStrategy{
	"huggingface":        catalog.DetectTimestamp,
	"openai":             catalog.DetectContentDiff,
	"anthropic":          catalog.DetectContentDiff,
	"google":             catalog.DetectContentDiff,
	"groq":               catalog.DetectContentDiff,
	"mistral":            catalog.DetectContentDiff,
	"artificialanalysis": catalog.DetectHash,
}

// builtinAppliers is the default dispatch table.
func builtinAppliers() map[string]Applier {
	return map[string]Applier{
		"huggingface": MergeApplier,
	}
}

// Options tune one provider update.
type Options struct {
	// Force applies the refresh even when detection finds no changes.
	Force bool

	// SkipSnapshot skips the rollback baseline. Rollback is then
	// unavailable for this update.
	SkipSnapshot bool

	// NoRollback leaves a failed update in place for inspection.
	NoRollback bool

	// Strategy overrides the provider's configured detection strategy.
	Strategy catalog.DetectionStrategy

	// Interval overrides the timestamp-based refresh interval.
	Interval time.Duration
}

// Updater runs incremental updates against the catalog state store.
type Updater struct {
	store     Store
	artifacts *storage.Store // nil skips snapshot and delta persistence
	discover  Discoverer
	appliers  map[string]Applier
	detection map[string]catalog.DetectionStrategy
	interval  time.Duration
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	busy      atomic.Bool
}

// Option configures an Updater.
type Option func(*Updater)

// WithStorage sets the artifact store for snapshots and delta records.
func WithStorage(st *storage.Store) Option {
	return func(u *Updater) { u.artifacts = st }
}

// WithLogger sets the updater's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(u *Updater) { u.logger = logger }
}

// WithMetrics sets the instrumentation sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(u *Updater) { u.metrics = m }
}

// WithApplier overrides the applier for one provider.
func WithApplier(provider string, fn Applier) Option {
	return func(u *Updater) { u.appliers[provider] = fn }
}

// WithDetection overrides the detection strategy for one provider.
func WithDetection(provider string, strategy catalog.DetectionStrategy) Option {
	return func(u *Updater) { u.detection[provider] = strategy }
}

// WithInterval sets the default timestamp-based refresh interval.
func WithInterval(d time.Duration) Option {
	return func(u *Updater) {
		if d > 0 {
			u.interval = d
		}
	}
}

// New builds an updater around a state store and a discoverer.
func New(store Store, discover Discoverer, opts ...Option) (*Updater, error) {
	if store == nil {
		return nil, errors.NewValidationError("store", nil, "updater needs a state store")
	}
	if discover == nil {
		return nil, errors.NewValidationError("discoverer", nil, "updater needs a discoverer")
	}

	u := &Updater{
		store:     store,
		discover:  discover,
		appliers:  builtinAppliers(),
		detection: make(map[string]catalog.DetectionStrategy, len(builtinDetection)),
		interval:  constants.DefaultUpdateInterval,
		logger:    *logging.Default(),
	}
	for name, strategy := range builtinDetection {
		u.detection[name] = strategy
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// UpdateProvider refreshes one provider's catalog: snapshot, detect, apply,
// validate, record. The returned DeltaRecord describes the outcome whether
// or not the update succeeded.
func (u *Updater) UpdateProvider(ctx context.Context, provider string, opts Options) (*catalog.DeltaRecord, error) {
	if provider == "" {
		return nil, errors.NewValidationError("provider", provider, "provider name required")
	}
	strategy, err := u.resolveStrategy(provider, opts.Strategy)
	if err != nil {
		return nil, err
	}

	if !u.busy.CompareAndSwap(false, true) {
		return nil, errors.ErrUpdateActive
	}
	defer u.busy.Store(false)

	delta := &catalog.DeltaRecord{
		DeltaID:    storage.NewID(storage.KindDelta),
		Provider:   provider,
		DetectedBy: strategy,
		StartedAt:  utc.Now(),
	}
	logger := u.logger.With().
		Str("provider", provider).
		Str("strategy", string(strategy)).
		Str("delta", delta.DeltaID).
		Logger()

	meta, err := u.store.UpdateMeta(provider)
	if err != nil {
		return u.fail(delta, logger, err)
	}

	// The timestamp gate answers "is a refresh due" without fetching.
	if strategy == catalog.DetectTimestamp && !opts.Force && !u.refreshDue(meta, opts.Interval) {
		finish(delta)
		u.metrics.UpdateCompleted(provider, "skipped")
		logger.Debug().Msg("refresh not due")
		return delta, nil
	}

	current, err := u.store.CurrentModels(provider)
	if err != nil {
		return u.fail(delta, logger, err)
	}

	fresh, err := u.discover(ctx, provider)
	if err != nil {
		return u.fail(delta, logger, err)
	}
	for i := range fresh {
		fresh[i].Normalize()
	}

	changes, applyAnyway := u.detect(strategy, current, fresh, meta, opts.Force)
	delta.Changes = *changes

	if changes.Empty() && !applyAnyway {
		// Verified fresh. Advance the bookkeeping so the timestamp and
		// hash gates measure from this check.
		u.saveMeta(provider, fresh, delta, logger)
		finish(delta)
		u.persistDelta(delta, logger)
		u.metrics.UpdateCompleted(provider, "no_changes")
		logger.Info().Msg("no changes detected")
		return delta, nil
	}

	var snap *catalog.Snapshot
	if !opts.SkipSnapshot {
		snap, err = u.takeSnapshot(provider, current)
		if err != nil {
			return u.fail(delta, logger, err)
		}
	}

	applied, err := u.apply(ctx, provider, current, fresh, changes)
	persisted := false
	if err == nil {
		err = u.store.SaveCurrentModels(provider, applied)
		persisted = err == nil
	}
	if err == nil {
		var warnings []string
		warnings, err = validateResult(applied, changes)
		delta.Warnings = warnings
		for _, w := range warnings {
			logger.Warn().Str("reason", w).Msg("update validation warning")
		}
		if err == nil {
			delta.Validated = true
		}
	}

	if err != nil {
		// Restore the baseline only when the broken state was persisted.
		// The original error propagates either way.
		if persisted && !opts.NoRollback && snap != nil {
			u.rollback(provider, snap, delta, logger)
		}
		return u.fail(delta, logger, err)
	}

	delta.Applied = true
	u.saveMeta(provider, applied, delta, logger)
	finish(delta)
	u.persistDelta(delta, logger)
	u.metrics.UpdateCompleted(provider, "applied")
	logger.Info().
		Int("added", len(changes.Added)).
		Int("modified", len(changes.Modified)).
		Int("removed", len(changes.Removed)).
		Int("models", len(applied)).
		Msg("update applied")
	return delta, nil
}

// Busy reports whether an update is currently running.
func (u *Updater) Busy() bool { return u.busy.Load() }

// resolveStrategy picks the detection strategy for a provider, validating
// any explicit override.
func (u *Updater) resolveStrategy(provider string, override catalog.DetectionStrategy) (catalog.DetectionStrategy, error) {
	if override != "" {
		switch override {
		case catalog.DetectTimestamp, catalog.DetectHash, catalog.DetectContentDiff:
			return override, nil
		default:
			return "", errors.NewValidationError("strategy", string(override), "unknown detection strategy")
		}
	}
	if s, ok := u.detection[provider]; ok {
		return s, nil
	}
	return catalog.DetectHash, nil
}

// refreshDue reports whether the timestamp interval has elapsed since the
// last recorded update.
func (u *Updater) refreshDue(meta *catalog.UpdateMeta, override time.Duration) bool {
	if meta == nil || meta.LastUpdate.IsZero() {
		return true
	}
	interval := u.interval
	if override > 0 {
		interval = override
	}
	return utc.Now().Sub(meta.LastUpdate) >= interval
}

// detect computes the change set for a strategy. applyAnyway is true when
// the strategy's gate already decided a refresh happens regardless of what
// the diff shows, or the caller forced one.
func (u *Updater) detect(strategy catalog.DetectionStrategy, current, fresh []catalog.ModelRecord, meta *catalog.UpdateMeta, force bool) (*catalog.ChangeSet, bool) {
	switch strategy {
	case catalog.DetectTimestamp:
		// Past the gate means the interval elapsed; the shallow diff only
		// annotates what the refresh will touch.
		return shallowDiff(current, fresh), true
	case catalog.DetectHash:
		if !force && meta != nil && meta.CatalogHash != "" && meta.CatalogHash == hashModels(fresh) {
			return &catalog.ChangeSet{}, false
		}
		return shallowDiff(current, fresh), force
	default:
		return contentDiff(current, fresh), force
	}
}

// apply dispatches to the provider's applier, falling back to wholesale
// replacement.
func (u *Updater) apply(ctx context.Context, provider string, current, fresh []catalog.ModelRecord, changes *catalog.ChangeSet) ([]catalog.ModelRecord, error) {
	applier := u.appliers[provider]
	if applier == nil {
		applier = ReplaceApplier
	}
	return applier(ctx, current, fresh, changes)
}

// validateResult sanity-checks the post-apply catalog. A corrupt catalog is
// a hard error; an empty one after a non-trivial change set is recorded as
// a warning and the update stands.
func validateResult(applied []catalog.ModelRecord, changes *catalog.ChangeSet) ([]string, error) {
	seen := make(map[string]struct{}, len(applied))
	for i := range applied {
		if _, dup := seen[applied[i].ID]; dup {
			return nil, errors.NewValidationError("models", applied[i].ID, "duplicate model id after update")
		}
		seen[applied[i].ID] = struct{}{}
	}

	var warnings []string
	if len(applied) == 0 && changes.Total() > 0 {
		warnings = append(warnings, "update left zero models in the catalog")
	}
	return warnings, nil
}

// takeSnapshot captures the rollback baseline, persisting it when an
// artifact store is wired. A persistence failure here aborts the update:
// without a durable baseline there is nothing safe to roll back to.
func (u *Updater) takeSnapshot(provider string, models []catalog.ModelRecord) (*catalog.Snapshot, error) {
	snap := &catalog.Snapshot{
		SnapshotID: storage.NewID(storage.KindSnapshot),
		Provider:   provider,
		CreatedAt:  utc.Now(),
		Models:     catalog.CloneModels(models),
		Count:      len(models),
	}
	if u.artifacts != nil {
		if _, err := u.artifacts.SaveSnapshot(snap); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// rollback restores the snapshot catalog without rotating generations. A
// restore failure is logged as a RollbackError and never masks the error
// that triggered the rollback.
func (u *Updater) rollback(provider string, snap *catalog.Snapshot, delta *catalog.DeltaRecord, logger zerolog.Logger) {
	if err := u.store.ReplaceCurrentModels(provider, snap.Models); err != nil {
		rbErr := errors.NewRollbackError(provider, snap.SnapshotID, err)
		logger.Error().Err(rbErr).Msg("rollback failed")
		return
	}
	delta.RolledBack = true
	logger.Warn().Str("snapshot", snap.SnapshotID).Msg("rolled back to snapshot")
}

// fail stamps the delta with the error and records it before propagating.
func (u *Updater) fail(delta *catalog.DeltaRecord, logger zerolog.Logger, err error) (*catalog.DeltaRecord, error) {
	delta.Error = err.Error()
	finish(delta)
	u.persistDelta(delta, logger)
	u.metrics.UpdateCompleted(delta.Provider, "failed")
	logger.Error().Err(err).Msg("update failed")
	return delta, err
}

// saveMeta advances the per-provider bookkeeping. Best effort: the update
// already stands, so a meta write failure only costs detection accuracy.
func (u *Updater) saveMeta(provider string, models []catalog.ModelRecord, delta *catalog.DeltaRecord, logger zerolog.Logger) {
	meta := &catalog.UpdateMeta{
		Provider:    provider,
		LastUpdate:  utc.Now(),
		CatalogHash: hashModels(models),
		LastDeltaID: delta.DeltaID,
		ModelCount:  len(models),
	}
	if err := u.store.SaveUpdateMeta(meta); err != nil {
		logger.Warn().Err(err).Msg("update meta write failed")
	}
}

// persistDelta appends the delta record to the artifact store, best effort.
func (u *Updater) persistDelta(delta *catalog.DeltaRecord, logger zerolog.Logger) {
	if u.artifacts == nil {
		return
	}
	if _, err := u.artifacts.SaveDelta(delta); err != nil {
		logger.Warn().Err(err).Msg("delta record write failed")
	}
}

func finish(delta *catalog.DeltaRecord) {
	delta.CompletedAt = utc.Now()
	delta.Duration = delta.CompletedAt.Sub(delta.StartedAt)
}
