package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
	"github.com/modelscout/modelscout/pkg/ratelimit"
)

// scanHub runs the paginated loop for hub-scale sources. Records stream to
// a JSONL artifact page by page; the full catalog is never held in memory.
// The resume cursor is persisted on a fixed cadence so an interrupted scan
// picks up close to where it stopped.
func (s *Scanner) scanHub(ctx context.Context, client providers.Client, name string, strat providers.Strategy, opts Options) (*catalog.ScanResult, error) {
	if s.store == nil {
		return nil, errors.NewValidationError("storage", nil, "paginated scans stream to disk and need a store")
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = strat.BatchSize
	}
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}

	var offset int64
	if opts.Resume && s.state != nil {
		cur, ok, err := s.state.Cursor(name)
		if err != nil {
			return nil, err
		}
		if ok {
			offset = cur
		}
	}

	scanID := storage.NewID(storage.KindScan)
	stream, err := s.store.NewStream(scanID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	result := &catalog.ScanResult{Provider: name, Stream: scanID}
	log := logging.Ctx(ctx)
	filter := newRecordFilter(opts)

	total := expectedTotal(strat, opts)

	var (
		totalErrors  int
		consecutive  int
		sincePersist int64
	)
	errorBudget := constants.MaxRetries * constants.ErrorBudgetMultiplier

	log.Info().
		Int64("offset", offset).
		Int("batch_size", batchSize).
		Msg("hub scan starting")

	for {
		if err := ctx.Err(); err != nil {
			s.persistCursor(ctx, name, offset, result, stream)
			result.Stats.FinalOffset = offset
			return result, err
		}
		if s.stopRequested(opts) {
			s.persistCursor(ctx, name, offset, result, stream)
			result.Stats.FinalOffset = offset
			return result, fmt.Errorf("%w: session %s", errors.ErrStopped, opts.SessionID)
		}

		if err := s.limiter.AcquirePermission(ctx, name, ratelimit.PermissionOptions{}); err != nil {
			s.persistCursor(ctx, name, offset, result, stream)
			result.Stats.FinalOffset = offset
			return result, err
		}

		batch, err := client.DiscoverModels(ctx, providers.DiscoverOptions{
			Offset: offset,
			Limit:  batchSize,
			Full:   opts.Full,
		})
		if err != nil {
			totalErrors++
			consecutive++
			result.Stats.Failed++

			if totalErrors > errorBudget {
				s.persistCursor(ctx, name, offset, result, stream)
				result.Stats.FinalOffset = offset
				return result, fmt.Errorf("%w: %d fetch errors at offset %d: %v",
					errors.ErrErrorBudgetExceeded, totalErrors, offset, err)
			}

			backoff := s.fetchBackoff(consecutive)
			log.Warn().Err(err).
				Int64("offset", offset).
				Int("consecutive", consecutive).
				Dur("backoff", backoff).
				Msg("hub fetch failed, backing off")

			select {
			case <-ctx.Done():
				s.persistCursor(ctx, name, offset, result, stream)
				result.Stats.FinalOffset = offset
				return result, ctx.Err()
			case <-time.After(backoff):
			}

			// Skip the failing window rather than wedging on it.
			offset += int64(batchSize)
			continue
		}
		consecutive = 0

		if len(batch) == 0 {
			// End of the listing: the next fresh scan starts over.
			s.clearCursor(ctx, name)
			break
		}

		result.Stats.Scanned += int64(len(batch))
		sincePersist += int64(len(batch))

		for i := range batch {
			if !filter.admit(&batch[i]) {
				result.Stats.Filtered++
				continue
			}
			batch[i].Normalize()
			if err := stream.Append(&batch[i]); err != nil {
				result.Stats.FinalOffset = offset
				return result, err
			}
		}

		offset += int64(batchSize)
		s.reportProgress(opts, result.Stats.Scanned, total)

		if sincePersist >= constants.ResumePersistEvery {
			s.persistCursor(ctx, name, offset, result, stream)
			sincePersist = 0
		}

		if opts.MaxItems > 0 && result.Stats.Scanned >= opts.MaxItems {
			s.persistCursor(ctx, name, offset, result, stream)
			break
		}

		if strat.Delay > 0 {
			select {
			case <-ctx.Done():
				s.persistCursor(ctx, name, offset, result, stream)
				result.Stats.FinalOffset = offset
				return result, ctx.Err()
			case <-time.After(strat.Delay):
			}
		}
	}

	result.Stats.FinalOffset = offset
	if err := stream.Flush(); err != nil {
		return result, err
	}
	return result, nil
}

// fetchBackoff doubles per consecutive failure, capped at the retry ceiling.
func (s *Scanner) fetchBackoff(consecutive int) time.Duration {
	backoff := s.backoffBase
	for i := 1; i < consecutive; i++ {
		backoff *= 2
		if backoff >= s.backoffCap {
			return s.backoffCap
		}
	}
	if backoff > s.backoffCap {
		return s.backoffCap
	}
	return backoff
}

// expectedTotal picks the denominator for progress reporting.
func expectedTotal(strat providers.Strategy, opts Options) int64 {
	if opts.MaxItems > 0 {
		return opts.MaxItems
	}
	return int64(strat.ExpectedModels)
}

// persistCursor saves the resume point and forces streamed records to disk,
// so a crash after this point loses nothing before the cursor.
func (s *Scanner) persistCursor(ctx context.Context, name string, offset int64, result *catalog.ScanResult, stream *storage.StreamWriter) {
	if err := stream.Flush(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("stream flush failed")
	}
	if s.state == nil {
		return
	}
	if err := s.state.SaveCursor(name, offset); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("offset", offset).Msg("cursor persist failed")
	}
}

func (s *Scanner) clearCursor(ctx context.Context, name string) {
	if s.state == nil {
		return
	}
	if err := s.state.ClearCursor(name); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("cursor clear failed")
	}
}

func (s *Scanner) stopRequested(opts Options) bool {
	return s.progress != nil && opts.SessionID != "" && s.progress.ShouldStop(opts.SessionID)
}

func (s *Scanner) reportProgress(opts Options, processed, total int64) {
	if s.progress == nil || opts.SessionID == "" {
		return
	}
	_ = s.progress.UpdateProgress(opts.SessionID, processed, total, "scanning")
}

// recordFilter is the admission predicate for scanned records.
type recordFilter struct {
	minDownloads   int64
	excludePrivate bool
	excludeGated   bool
	tags           map[string]bool
	tasks          map[string]bool
	libraries      map[string]bool
}

func newRecordFilter(opts Options) *recordFilter {
	return &recordFilter{
		minDownloads:   opts.MinDownloads,
		excludePrivate: opts.ExcludePrivate,
		excludeGated:   opts.ExcludeGated,
		tags:           toSet(opts.Tags),
		tasks:          toSet(opts.Tasks),
		libraries:      toSet(opts.Libraries),
	}
}

// admit applies the filter. Empty allow-lists admit everything.
func (f *recordFilter) admit(rec *catalog.ModelRecord) bool {
	if f.minDownloads > 0 && rec.Downloads < f.minDownloads {
		return false
	}
	if f.excludePrivate && rec.Private {
		return false
	}
	if f.excludeGated && rec.Gated {
		return false
	}
	if len(f.tasks) > 0 && !f.tasks[strings.ToLower(rec.Task)] {
		return false
	}
	if len(f.libraries) > 0 && !f.libraries[strings.ToLower(rec.Library)] {
		return false
	}
	if len(f.tags) > 0 && !anyInSet(rec.Tags, f.tags) {
		return false
	}
	return true
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

func anyInSet(values []string, set map[string]bool) bool {
	for _, v := range values {
		if set[strings.ToLower(v)] {
			return true
		}
	}
	return false
}
