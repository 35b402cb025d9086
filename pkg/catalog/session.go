package catalog

import (
	"math"
	"time"

	"github.com/agentstation/utc"
)

// SessionStatus is the lifecycle state of a scan session.
type SessionStatus string

// Session lifecycle states: created → running ⇄ paused → terminal.
const (
	SessionCreated   SessionStatus = "created"
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionStopped   SessionStatus = "stopped"
)

// Terminal reports whether the status ends a session's lifecycle.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionStopped:
		return true
	default:
		return false
	}
}

// ScanParams are the strategy parameters a session was started with.
type ScanParams struct {
	BatchSize   int           `json:"batch_size"`
	Concurrency int           `json:"concurrency"`
	Delay       time.Duration `json:"delay"` // Pause between batches
}

// Progress tracks the mutable counters of one session. It is mutated only
// by the owning progress tracker.
type Progress struct {
	Processed  int64         `json:"processed"`
	Skipped    int64         `json:"skipped"`
	Failed     int64         `json:"failed"`
	Total      int64         `json:"total"`
	Percentage int           `json:"percentage"` // round(processed/total*100), clamped to [0,100]
	Phase      string        `json:"phase"`
	Throughput float64       `json:"throughput"` // Items/s over the recent window
	ETA        time.Duration `json:"eta"`
}

// UpdatePercentage recomputes Percentage from the counters. With an unknown
// total the percentage stays at its previous value.
func (p *Progress) UpdatePercentage() {
	if p.Total <= 0 {
		return
	}
	pct := int(math.Round(float64(p.Processed) / float64(p.Total) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.Percentage = pct
}

// ScanSession is one in-progress or finished scan. Created when a scan
// starts, removed from the active set once terminal; its final state is
// appended to the session log first.
type ScanSession struct {
	SessionID     string        `json:"session_id"`
	Providers     []string      `json:"providers"`
	Params        ScanParams    `json:"params"`
	Progress      Progress      `json:"progress"`
	Status        SessionStatus `json:"status"`
	CheckpointIDs []string      `json:"checkpoint_ids,omitempty"`
	Errors        []string      `json:"errors,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	StartedAt     utc.Time      `json:"started_at"`
	UpdatedAt     utc.Time      `json:"updated_at"`
	EndedAt       *utc.Time     `json:"ended_at,omitempty"`
}

// Clone returns a deep copy of the session.
func (s *ScanSession) Clone() ScanSession {
	out := *s
	out.Providers = append([]string(nil), s.Providers...)
	out.CheckpointIDs = append([]string(nil), s.CheckpointIDs...)
	out.Errors = append([]string(nil), s.Errors...)
	out.Warnings = append([]string(nil), s.Warnings...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}

// ResourceUsage is a point-in-time sample of process resources, recorded on
// checkpoints for post-mortem debugging.
type ResourceUsage struct {
	HeapMB     float64 `json:"heap_mb"`
	Goroutines int     `json:"goroutines"`
}

// Checkpoint is an immutable snapshot of a session's resumable state.
// Written at every lifecycle transition and on a fixed interval; never
// mutated once written.
type Checkpoint struct {
	CheckpointID string        `json:"checkpoint_id"`
	SessionID    string        `json:"session_id"`
	CreatedAt    utc.Time      `json:"created_at"`
	Status       SessionStatus `json:"status"`
	Phase        string        `json:"phase"`
	Progress     Progress      `json:"progress"`
	ResumeOffset int64         `json:"resume_offset"`
	Resources    ResourceUsage `json:"resources"`
	RecentErrors []string      `json:"recent_errors,omitempty"` // Trailing errors, newest last
}
