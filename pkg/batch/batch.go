// Package batch runs homogeneous work over a bounded worker pool. Items are
// cut into fixed-size batches; idle workers pull the next batch index off a
// shared channel, so the number of in-flight batches never exceeds the pool
// size regardless of how uneven batch durations are. Each batch runs under
// its own hard deadline, failed items can be retried with doubling backoff,
// and a heap gate holds admission back when memory is tight.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelscout/modelscout/internal/metrics"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
)

// Options tunes one Process run. The zero value gets sensible defaults.
type Options struct {
	// BatchSize is the number of items per batch.
	BatchSize int

	// MaxConcurrency caps the worker pool. Zero means the smaller of the
	// core count and the global worker ceiling.
	MaxConcurrency int

	// BatchTimeout is the hard deadline for one batch. A batch that blows
	// it is recorded failed and abandoned; work functions must honor ctx.
	BatchTimeout time.Duration

	// EnableRetry turns on per-item retries with doubling backoff.
	EnableRetry bool

	// MaxRetries bounds retry attempts per item after the first failure.
	MaxRetries int

	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration

	// MemoryLimitMB holds batch admission while heap use is above it.
	// Zero means the default cap; negative disables the gate.
	MemoryLimitMB int

	// Metrics receives batch durations and worker counts. May be nil.
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = constants.DefaultBatchSize
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = constants.BatchTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = constants.MaxRetries
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = constants.RetryBackoff
	}
	if o.MemoryLimitMB == 0 {
		o.MemoryLimitMB = constants.DefaultMemoryLimitMB
	}
	return o
}

// workerCount resolves the pool size for a run over the given batch count.
func (o Options) workerCount(batches int) int {
	n := runtime.NumCPU()
	if n > constants.MaxWorkers {
		n = constants.MaxWorkers
	}
	if o.MaxConcurrency > 0 && n > o.MaxConcurrency {
		n = o.MaxConcurrency
	}
	if n > batches {
		n = batches
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Failure records one item that could not be processed.
type Failure struct {
	Index int    `json:"index"`
	Item  string `json:"item"`
	Err   error  `json:"-"`
	Error string `json:"error"`
}

// Stats summarizes one Process run.
type Stats struct {
	Processed  int           `json:"processed"`
	Failed     int           `json:"failed"`
	Retries    int           `json:"retries"`
	Batches    int           `json:"batches"`
	Duration   time.Duration `json:"duration"`
	PeakHeapMB float64       `json:"peak_heap_mb"`
	MaxActive  int           `json:"max_active"`
}

// Result carries the outputs of a run. Processed preserves input order;
// failed items are absent from it.
type Result[R any] struct {
	Processed []R
	Failed    []Failure
	Stats     Stats
}

// itemOutcome is the per-item output of one batch.
type itemOutcome[R any] struct {
	index   int
	value   R
	err     error
	retries int
}

// Process runs work over every item. It returns once every batch finished
// or timed out, or earlier when ctx is cancelled; a cancelled run returns
// the partial result alongside ctx's error.
func Process[T, R any](ctx context.Context, items []T, work func(context.Context, T) (R, error), opts Options) (*Result[R], error) {
	if work == nil {
		return nil, errors.NewValidationError("work", nil, "work function required")
	}

	opts = opts.withDefaults()
	start := time.Now()
	log := logging.Ctx(ctx)

	if len(items) == 0 {
		return &Result[R]{Stats: Stats{Duration: time.Since(start)}}, nil
	}

	batches := splitIndexes(len(items), opts.BatchSize)
	workers := opts.workerCount(len(batches))
	gate := newMemoryGate(opts.MemoryLimitMB)

	log.Debug().
		Int("items", len(items)).
		Int("batches", len(batches)).
		Int("workers", workers).
		Msg("batch run starting")

	// Pre-filled and closed: idle workers pull the next batch index.
	queue := make(chan int, len(batches))
	for i := range batches {
		queue <- i
	}
	close(queue)

	outcomes := make([][]itemOutcome[R], len(batches))

	var (
		wg        sync.WaitGroup
		active    atomic.Int64
		maxActive atomic.Int64
		retries   atomic.Int64
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bi := range queue {
				if ctx.Err() != nil {
					return
				}
				if err := gate.wait(ctx); err != nil {
					return
				}

				cur := active.Add(1)
				for {
					prev := maxActive.Load()
					if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
						break
					}
				}
				opts.Metrics.SetActiveWorkers(int(cur))

				outcomes[bi] = runBatch(ctx, items, batches[bi], work, opts, &retries)

				opts.Metrics.SetActiveWorkers(int(active.Add(-1)))
			}
		}()
	}

	wg.Wait()
	opts.Metrics.SetActiveWorkers(0)

	result := &Result[R]{}
	for _, batch := range outcomes {
		for _, out := range batch {
			if out.err != nil {
				result.Failed = append(result.Failed, Failure{
					Index: out.index,
					Item:  summarize(items[out.index]),
					Err:   out.err,
					Error: out.err.Error(),
				})
				continue
			}
			result.Processed = append(result.Processed, out.value)
		}
	}

	result.Stats = Stats{
		Processed:  len(result.Processed),
		Failed:     len(result.Failed),
		Retries:    int(retries.Load()),
		Batches:    len(batches),
		Duration:   time.Since(start),
		PeakHeapMB: gate.peakMB(),
		MaxActive:  int(maxActive.Load()),
	}

	log.Debug().
		Int("processed", result.Stats.Processed).
		Int("failed", result.Stats.Failed).
		Int("retries", result.Stats.Retries).
		Dur("duration", result.Stats.Duration).
		Msg("batch run finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// span is one batch's [start, end) slice of the item list.
type span struct{ start, end int }

func splitIndexes(total, size int) []span {
	spans := make([]span, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		spans = append(spans, span{start, end})
	}
	return spans
}

// runBatch executes one batch under its own deadline. The batch body runs
// in a child goroutine; on deadline the whole batch is recorded failed and
// the goroutine is left to notice its cancelled context.
func runBatch[T, R any](ctx context.Context, items []T, sp span, work func(context.Context, T) (R, error), opts Options, retries *atomic.Int64) []itemOutcome[R] {
	bctx, cancel := context.WithTimeout(ctx, opts.BatchTimeout)
	defer cancel()

	batchStart := time.Now()
	done := make(chan []itemOutcome[R], 1)

	go func() {
		outs := make([]itemOutcome[R], 0, sp.end-sp.start)
		for i := sp.start; i < sp.end; i++ {
			if bctx.Err() != nil {
				return
			}
			outs = append(outs, processItem(bctx, i, items[i], work, opts, retries))
		}
		done <- outs
	}()

	select {
	case outs := <-done:
		opts.Metrics.ObserveBatch(time.Since(batchStart))
		return outs
	case <-bctx.Done():
		opts.Metrics.ObserveBatch(time.Since(batchStart))
		err := bctx.Err()
		if err == context.DeadlineExceeded {
			err = errors.NewTimeoutError("batch", sp.start/opts.BatchSize, time.Since(batchStart), opts.BatchTimeout)
		}
		outs := make([]itemOutcome[R], 0, sp.end-sp.start)
		for i := sp.start; i < sp.end; i++ {
			outs = append(outs, itemOutcome[R]{index: i, err: err})
		}
		return outs
	}
}

// processItem runs one item, retrying with doubling backoff when enabled.
func processItem[T, R any](ctx context.Context, index int, item T, work func(context.Context, T) (R, error), opts Options, retries *atomic.Int64) itemOutcome[R] {
	out := itemOutcome[R]{index: index}

	backoff := opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		out.value, out.err = work(ctx, item)
		if out.err == nil {
			return out
		}
		if !opts.EnableRetry || attempt >= opts.MaxRetries || ctx.Err() != nil {
			return out
		}

		retries.Add(1)
		out.retries++
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return out
		}
		backoff = nextBackoff(backoff)
	}
}

// nextBackoff doubles the delay, capped so retries of long jobs cannot
// stall a worker for minutes.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > constants.MaxRetryBackoff {
		d = constants.MaxRetryBackoff
	}
	return d
}

// summarize renders an item for failure reporting, truncated so one huge
// record cannot bloat the result.
func summarize(item any) string {
	s := fmt.Sprintf("%v", item)
	const max = 128
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
