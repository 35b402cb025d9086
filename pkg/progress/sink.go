package progress

import (
	"fmt"
	"time"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
)

// UpdateProgress records new cumulative counters for a session and
// recomputes percentage, windowed throughput, and ETA. Processed is an
// absolute count, not a delta; a zero total keeps the previous total.
// Together with ShouldStop this satisfies the scanner's progress sink.
func (t *Tracker) UpdateProgress(sessionID string, processed, total int64, phase string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}

	p := &s.data.Progress
	p.Processed = processed
	if total > 0 {
		p.Total = total
	}
	if phase != "" {
		p.Phase = phase
	}
	p.UpdatePercentage()

	s.window.add(t.now(), processed)
	p.Throughput = s.window.rate()
	p.ETA = eta(p)

	s.data.UpdatedAt = utc.Now()
	return nil
}

// ShouldStop reports whether a cooperative stop was requested. Unknown
// sessions read as stop so loops orphaned by a terminal transition wind
// down.
func (t *Tracker) ShouldStop(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return true
	}
	return s.stopRequested
}

// eta estimates time to completion from the windowed throughput. Zero when
// the rate or the remaining work is unknown.
func eta(p *catalog.Progress) time.Duration {
	if p.Throughput <= 0 || p.Total <= 0 || p.Processed >= p.Total {
		return 0
	}
	remaining := float64(p.Total - p.Processed)
	return time.Duration(remaining / p.Throughput * float64(time.Second))
}

// throughputWindow holds recent (time, cumulative count) samples and
// derives an items/s rate across them. Samples older than the window are
// dropped as new ones arrive.
type throughputWindow struct {
	samples []sample
}

type sample struct {
	at    time.Time
	count int64
}

func (w *throughputWindow) add(at time.Time, count int64) {
	w.samples = append(w.samples, sample{at: at, count: count})

	cutoff := at.Add(-constants.ThroughputWindow)
	i := 0
	for i < len(w.samples)-1 && w.samples[i].at.Before(cutoff) {
		i++
	}
	w.samples = w.samples[i:]
}

// rate returns items/s over the retained samples, zero until two samples
// span a positive interval. A negative count delta (a resumed counter)
// also reads as zero.
func (w *throughputWindow) rate() float64 {
	if len(w.samples) < 2 {
		return 0
	}
	first := w.samples[0]
	last := w.samples[len(w.samples)-1]

	dt := last.at.Sub(first.at).Seconds()
	dn := last.count - first.count
	if dt <= 0 || dn < 0 {
		return 0
	}
	return float64(dn) / dt
}

func (w *throughputWindow) reset() {
	w.samples = nil
}
