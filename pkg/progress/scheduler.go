package progress

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs named periodic tasks. The tracker schedules checkpoint and
// auto-save cadence through it, so tests drive time explicitly instead of
// sleeping against wall-clock tickers.
type Scheduler interface {
	// Schedule runs fn every interval until the returned stop function is
	// called. Stop blocks until no run is in flight.
	Schedule(name string, every time.Duration, fn func(ctx context.Context)) (stop func())
}

// TickerScheduler runs tasks on wall-clock tickers, one goroutine per task.
// Stopping a task cancels the context handed to an in-flight run and waits
// for it to return.
type TickerScheduler struct{}

var _ Scheduler = TickerScheduler{}

// Schedule implements Scheduler.
func (TickerScheduler) Schedule(name string, every time.Duration, fn func(ctx context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(every)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			cancel()
			<-done
		})
	}
}

// ManualScheduler runs tasks only when Fire is called, in the calling
// goroutine. Tests use it to make periodic behavior deterministic.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks map[string][]*manualTask
}

type manualTask struct {
	fn      func(ctx context.Context)
	stopped bool
}

var _ Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler builds an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[string][]*manualTask)}
}

// Schedule implements Scheduler. The interval is recorded nowhere; tasks
// run only on Fire.
func (m *ManualScheduler) Schedule(name string, every time.Duration, fn func(ctx context.Context)) (stop func()) {
	t := &manualTask{fn: fn}

	m.mu.Lock()
	m.tasks[name] = append(m.tasks[name], t)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		t.stopped = true
		m.mu.Unlock()
	}
}

// Fire synchronously runs every live task registered under name.
func (m *ManualScheduler) Fire(name string) {
	m.mu.Lock()
	fns := make([]func(ctx context.Context), 0, len(m.tasks[name]))
	for _, t := range m.tasks[name] {
		if !t.stopped {
			fns = append(fns, t.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(context.Background())
	}
}

// Scheduled reports whether any live task is registered under name.
func (m *ManualScheduler) Scheduled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks[name] {
		if !t.stopped {
			return true
		}
	}
	return false
}
