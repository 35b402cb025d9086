// Package progress tracks scan sessions: lifecycle state, live counters,
// windowed throughput, and crash-safe checkpointing. A session moves
// created → running ⇄ paused → {completed, failed, stopped}; every
// transition writes a checkpoint, and running sessions checkpoint and
// auto-save on fixed intervals so an interrupted scan resumes from its
// last durable state rather than from zero.
//
// The tracker is the scanner's progress sink: scanners report cumulative
// counters through UpdateProgress and poll ShouldStop for cooperative
// cancellation. Persistence failures never fail the tracked operation;
// they are logged and the in-memory state marches on.
package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout/internal/metrics"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
)

// validTransitions is the session state machine. Terminal states have no
// outgoing edges.
var validTransitions = map[catalog.SessionStatus][]catalog.SessionStatus{
	catalog.SessionCreated: {catalog.SessionRunning},
	catalog.SessionRunning: {catalog.SessionPaused, catalog.SessionCompleted, catalog.SessionFailed, catalog.SessionStopped},
	catalog.SessionPaused:  {catalog.SessionRunning, catalog.SessionCompleted, catalog.SessionFailed, catalog.SessionStopped},
}

func transitionAllowed(from, to catalog.SessionStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// session pairs the public session record with tracker-internal state.
type session struct {
	data          catalog.ScanSession
	window        *throughputWindow
	resumeOffset  int64 // explicit resume cursor; zero falls back to Progress.Processed
	stopRequested bool
	cancelTasks   []func()
}

// Tracker owns the active session set. All methods are safe for concurrent
// use; snapshots returned to callers are clones and never alias internal
// state.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*session

	store     *storage.Store // nil keeps sessions in memory only
	scheduler Scheduler
	logger    zerolog.Logger
	metrics   *metrics.Metrics

	checkpointEvery time.Duration
	autosaveEvery   time.Duration

	now func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStorage sets the artifact store for checkpoints, progress auto-saves,
// and the finished-session log. Without it sessions live in memory only.
func WithStorage(st *storage.Store) Option {
	return func(t *Tracker) { t.store = st }
}

// WithScheduler replaces the wall-clock scheduler, mainly for tests.
func WithScheduler(s Scheduler) Option {
	return func(t *Tracker) { t.scheduler = s }
}

// WithLogger sets the tracker's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithMetrics sets the instrumentation sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithIntervals overrides the checkpoint and auto-save cadence.
// Non-positive values keep the defaults.
func WithIntervals(checkpoint, autosave time.Duration) Option {
	return func(t *Tracker) {
		if checkpoint > 0 {
			t.checkpointEvery = checkpoint
		}
		if autosave > 0 {
			t.autosaveEvery = autosave
		}
	}
}

// New builds a tracker. Defaults: no storage, wall-clock scheduling, the
// package default logger, and the standard checkpoint and auto-save
// intervals.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		sessions:        make(map[string]*session),
		scheduler:       TickerScheduler{},
		logger:          *logging.Default(),
		checkpointEvery: constants.CheckpointInterval,
		autosaveEvery:   constants.AutoSaveInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartTracking creates a session for the given providers, writes its first
// checkpoint, and starts its periodic checkpoint and auto-save tasks. The
// session is returned already running.
func (t *Tracker) StartTracking(providers []string, params catalog.ScanParams) (*catalog.ScanSession, error) {
	if len(providers) == 0 {
		return nil, errors.NewValidationError("providers", providers, "session needs at least one provider")
	}

	now := utc.Now()
	s := &session{
		data: catalog.ScanSession{
			SessionID: storage.NewID(storage.KindSession),
			Providers: append([]string(nil), providers...),
			Params:    params,
			Status:    catalog.SessionCreated,
			StartedAt: now,
			UpdatedAt: now,
		},
		window: &throughputWindow{},
	}
	s.window.add(t.now(), 0)

	t.mu.Lock()
	t.sessions[s.data.SessionID] = s
	t.scheduleLocked(s)
	if err := t.transitionLocked(s, catalog.SessionRunning); err != nil {
		delete(t.sessions, s.data.SessionID)
		stops := s.cancelTasks
		t.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
		return nil, err
	}
	snap := s.data.Clone()
	t.mu.Unlock()

	t.logger.Info().
		Str("session", snap.SessionID).
		Strs("providers", snap.Providers).
		Msg("session started")
	return &snap, nil
}

// scheduleLocked starts the per-session periodic tasks. Task callbacks look
// the session up by id, so a fire after removal is a no-op.
func (t *Tracker) scheduleLocked(s *session) {
	sid := s.data.SessionID

	stopCheckpoint := t.scheduler.Schedule(checkpointTask(sid), t.checkpointEvery, func(context.Context) {
		_, _ = t.Checkpoint(sid)
	})
	stopAutosave := t.scheduler.Schedule(autosaveTask(sid), t.autosaveEvery, func(context.Context) {
		t.autosave(sid)
	})
	s.cancelTasks = append(s.cancelTasks, stopCheckpoint, stopAutosave)
}

func checkpointTask(sessionID string) string { return "checkpoint:" + sessionID }
func autosaveTask(sessionID string) string   { return "autosave:" + sessionID }

// transitionLocked applies one state change, stamps timestamps, and writes
// the transition checkpoint. Callers hold t.mu.
func (t *Tracker) transitionLocked(s *session, to catalog.SessionStatus) error {
	from := s.data.Status
	if !transitionAllowed(from, to) {
		return fmt.Errorf("%w: %s to %s", errors.ErrInvalidTransition, from, to)
	}

	s.data.Status = to
	s.data.UpdatedAt = utc.Now()
	if to.Terminal() {
		ended := utc.Now()
		s.data.EndedAt = &ended
	}
	t.checkpointLocked(s)

	t.logger.Info().
		Str("session", s.data.SessionID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("session state change")
	return nil
}

// Pause suspends a running session. Its periodic tasks keep firing so a
// paused session stays checkpointed.
func (t *Tracker) Pause(sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	return t.transitionLocked(s, catalog.SessionPaused)
}

// Resume returns a paused session to running.
func (t *Tracker) Resume(sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	return t.transitionLocked(s, catalog.SessionRunning)
}

// Complete finishes a session successfully.
func (t *Tracker) Complete(sessionID string) error {
	return t.terminate(sessionID, catalog.SessionCompleted, nil)
}

// Fail finishes a session with an error. The cause lands in the session's
// error list and the terminal checkpoint before the state change.
func (t *Tracker) Fail(sessionID string, cause error) error {
	return t.terminate(sessionID, catalog.SessionFailed, cause)
}

// Stop finishes a session that wound down after a stop request.
func (t *Tracker) Stop(sessionID string) error {
	return t.terminate(sessionID, catalog.SessionStopped, nil)
}

// RequestStop flags a session so cooperating loops wind down at their next
// ShouldStop poll. The session transitions to stopped only when the loop
// confirms via Stop.
func (t *Tracker) RequestStop(sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	s.stopRequested = true
	return nil
}

// terminate moves a session to a terminal state, stops its tasks, archives
// it to the session log, and drops it from the active set. Task stops run
// outside the tracker lock: a stop waits for in-flight task callbacks, and
// those callbacks take the lock.
func (t *Tracker) terminate(sessionID string, to catalog.SessionStatus, cause error) error {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	if cause != nil {
		s.data.Errors = append(s.data.Errors, cause.Error())
	}
	if err := t.transitionLocked(s, to); err != nil {
		t.mu.Unlock()
		return err
	}
	snap := s.data.Clone()
	stops := s.cancelTasks
	s.cancelTasks = nil
	delete(t.sessions, sessionID)
	t.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	t.archive(&snap)
	return nil
}

// archive appends a finished session to the session log and removes its
// progress artifact. Best effort on both counts.
func (t *Tracker) archive(sess *catalog.ScanSession) {
	if t.store == nil {
		return
	}
	if err := t.store.AppendSessionLog(sess); err != nil {
		t.logger.Warn().Err(err).Str("session", sess.SessionID).Msg("session log append failed")
	}
	if err := t.store.Remove(storage.KindSession, sess.SessionID); err != nil {
		t.logger.Warn().Err(err).Str("session", sess.SessionID).Msg("session artifact remove failed")
	}
}

// AddError appends an error message to a session.
func (t *Tracker) AddError(sessionID, msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	s.data.Errors = append(s.data.Errors, msg)
	s.data.UpdatedAt = utc.Now()
	return nil
}

// AddWarning appends a warning message to a session.
func (t *Tracker) AddWarning(sessionID, msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	s.data.Warnings = append(s.data.Warnings, msg)
	s.data.UpdatedAt = utc.Now()
	return nil
}

// RecordCounts adds to a session's skipped and failed item counters.
func (t *Tracker) RecordCounts(sessionID string, skipped, failed int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	s.data.Progress.Skipped += skipped
	s.data.Progress.Failed += failed
	s.data.UpdatedAt = utc.Now()
	return nil
}

// RecordOffset sets the resume cursor the next checkpoint carries, for
// scans whose resume point is a pagination offset rather than an item
// count.
func (t *Tracker) RecordOffset(sessionID string, offset int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	s.resumeOffset = offset
	return nil
}

// Session returns a snapshot of one active session.
func (t *Tracker) Session(sessionID string) (*catalog.ScanSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	snap := s.data.Clone()
	return &snap, nil
}

// Active returns snapshots of every active session, sorted by id.
func (t *Tracker) Active() []catalog.ScanSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]catalog.ScanSession, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s.data.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// activeIDs returns the ids of every active session, sorted.
func (t *Tracker) activeIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History reads the finished-session log. Without storage there is no
// history.
func (t *Tracker) History() ([]catalog.ScanSession, error) {
	if t.store == nil {
		return nil, nil
	}
	return t.store.SessionLog()
}

// Close checkpoints every active session and stops its scheduled tasks.
// Sessions keep their current state; Close is for process shutdown, not
// session completion.
func (t *Tracker) Close() error {
	for _, id := range t.activeIDs() {
		_, _ = t.Checkpoint(id)
	}

	t.mu.Lock()
	var stops []func()
	for _, s := range t.sessions {
		stops = append(stops, s.cancelTasks...)
		s.cancelTasks = nil
	}
	t.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	return nil
}
