package progress

import (
	"fmt"
	"runtime"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
)

// Checkpoint writes a checkpoint for a session immediately, outside the
// periodic cadence.
func (t *Tracker) Checkpoint(sessionID string) (*catalog.Checkpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	return t.checkpointLocked(s), nil
}

// checkpointLocked snapshots the session into a new checkpoint, records its
// id on the session, and persists it. Persistence is best effort; a write
// failure is logged and counted but never surfaces to the tracked
// operation. Callers hold t.mu.
func (t *Tracker) checkpointLocked(s *session) *catalog.Checkpoint {
	cp := t.buildCheckpoint(s)
	s.data.CheckpointIDs = append(s.data.CheckpointIDs, cp.CheckpointID)

	if t.store != nil {
		if _, err := t.store.SaveCheckpoint(cp); err != nil {
			t.metrics.CheckpointWritten("failed")
			t.logger.Warn().
				Err(err).
				Str("session", s.data.SessionID).
				Str("checkpoint", cp.CheckpointID).
				Msg("checkpoint write failed")
		} else {
			t.metrics.CheckpointWritten("written")
		}
	}
	return cp
}

// buildCheckpoint assembles an immutable snapshot of the session's
// resumable state, including a point-in-time resource sample.
func (t *Tracker) buildCheckpoint(s *session) *catalog.Checkpoint {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	offset := s.resumeOffset
	if offset == 0 {
		offset = s.data.Progress.Processed
	}

	recent := s.data.Errors
	if len(recent) > constants.RecentErrorLimit {
		recent = recent[len(recent)-constants.RecentErrorLimit:]
	}

	return &catalog.Checkpoint{
		CheckpointID: storage.NewID(storage.KindCheckpoint),
		SessionID:    s.data.SessionID,
		CreatedAt:    utc.Now(),
		Status:       s.data.Status,
		Phase:        s.data.Progress.Phase,
		Progress:     s.data.Progress,
		ResumeOffset: offset,
		Resources: catalog.ResourceUsage{
			HeapMB:     float64(ms.HeapAlloc) / (1 << 20),
			Goroutines: runtime.NumGoroutine(),
		},
		RecentErrors: append([]string(nil), recent...),
	}
}

// autosave writes the session's lightweight progress artifact, overwriting
// the previous save. The write happens outside the tracker lock.
func (t *Tracker) autosave(sessionID string) {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return
	}
	snap := s.data.Clone()
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	if _, err := t.store.WriteJSON(storage.KindSession, snap.SessionID, &snap); err != nil {
		t.logger.Warn().
			Err(err).
			Str("session", snap.SessionID).
			Msg("progress auto-save failed")
	}
}

// ResumeFromCheckpoint reconstructs a session from a persisted checkpoint
// and returns it running. Counters come back exactly as checkpointed; the
// throughput window restarts because a rate measured across a crash gap is
// meaningless. Identity fields the checkpoint does not carry (providers,
// params, message history) are restored from the session's last progress
// auto-save when one exists.
func (t *Tracker) ResumeFromCheckpoint(checkpointID string) (*catalog.ScanSession, error) {
	if t.store == nil {
		return nil, errors.NewValidationError("storage", nil, "resume requires a checkpoint store")
	}

	cp, err := t.store.LoadCheckpoint(checkpointID)
	if err != nil {
		return nil, err
	}
	if cp.Status.Terminal() {
		return nil, errors.NewValidationError("checkpoint", checkpointID, "session finished as "+string(cp.Status)+"; nothing to resume")
	}

	sess := catalog.ScanSession{
		SessionID: cp.SessionID,
		Status:    catalog.SessionPaused,
		Progress:  cp.Progress,
		StartedAt: cp.CreatedAt,
		UpdatedAt: utc.Now(),
	}
	var saved catalog.ScanSession
	if err := t.store.ReadJSON(storage.KindSession, cp.SessionID, &saved); err == nil {
		sess.Providers = saved.Providers
		sess.Params = saved.Params
		sess.CheckpointIDs = saved.CheckpointIDs
		sess.Errors = saved.Errors
		sess.Warnings = saved.Warnings
		sess.StartedAt = saved.StartedAt
	}
	sess.Progress = cp.Progress
	sess.Progress.Throughput = 0
	sess.Progress.ETA = 0

	s := &session{
		data:         sess,
		window:       &throughputWindow{},
		resumeOffset: cp.ResumeOffset,
	}
	s.window.add(t.now(), cp.Progress.Processed)

	t.mu.Lock()
	if _, exists := t.sessions[cp.SessionID]; exists {
		t.mu.Unlock()
		return nil, errors.NewValidationError("session", cp.SessionID, "session is already active")
	}
	t.sessions[cp.SessionID] = s
	t.scheduleLocked(s)
	if err := t.transitionLocked(s, catalog.SessionRunning); err != nil {
		delete(t.sessions, cp.SessionID)
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
		Str("checkpoint", checkpointID).
		Int64("processed", snap.Progress.Processed).
		Int64("resume_offset", cp.ResumeOffset).
		Msg("session resumed from checkpoint")
	return &snap, nil
}
