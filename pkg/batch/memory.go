package batch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/logging"
)

// memoryGate holds batch admission while heap use is over the cap.
// runtime.ReadMemStats stops the world, so readings are cached and taken at
// most once per sample interval no matter how many workers ask.
type memoryGate struct {
	limitBytes uint64

	mu        sync.Mutex
	lastRead  time.Time
	lastHeap  uint64
	peakBytes uint64
}

func newMemoryGate(limitMB int) *memoryGate {
	if limitMB < 0 {
		return &memoryGate{}
	}
	return &memoryGate{limitBytes: uint64(limitMB) * 1024 * 1024}
}

// wait blocks until heap use is under the cap or ctx is done. A zero limit
// means the gate is disabled.
func (g *memoryGate) wait(ctx context.Context) error {
	if g.limitBytes == 0 {
		return nil
	}
	heap := g.heap()
	if heap <= g.limitBytes {
		return nil
	}

	logging.Ctx(ctx).Warn().
		Uint64("heap_bytes", heap).
		Uint64("limit_bytes", g.limitBytes).
		Msg("memory cap reached, holding batch admission")

	ticker := time.NewTicker(constants.MemorySampleInterval)
	defer ticker.Stop()

	for {
		runtime.GC()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if g.heap() <= g.limitBytes {
				return nil
			}
		}
	}
}

// heap returns the current heap allocation, re-reading at most once per
// sample interval.
func (g *memoryGate) heap() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if time.Since(g.lastRead) < constants.MemorySampleInterval && !g.lastRead.IsZero() {
		return g.lastHeap
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	g.lastRead = time.Now()
	g.lastHeap = ms.HeapAlloc
	if ms.HeapAlloc > g.peakBytes {
		g.peakBytes = ms.HeapAlloc
	}
	return g.lastHeap
}

// peakMB reports the highest heap sample seen during the run.
func (g *memoryGate) peakMB() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return float64(g.peakBytes) / (1024 * 1024)
}
