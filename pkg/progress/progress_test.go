package progress

import (
	"context"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
)

func newTestTracker(t *testing.T) (*Tracker, *ManualScheduler, *storage.Store) {
	t.Helper()
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)

	sched := NewManualScheduler()
	tr := New(WithStorage(st), WithScheduler(sched), WithLogger(logging.Nop))
	return tr, sched, st
}

func startSession(t *testing.T, tr *Tracker) *catalog.ScanSession {
	t.Helper()
	sess, err := tr.StartTracking([]string{"huggingface"}, catalog.ScanParams{BatchSize: 100, Concurrency: 4})
	require.NoError(t, err)
	return sess
}

func TestStartTracking(t *testing.T) {
	tr, sched, st := newTestTracker(t)

	sess, err := tr.StartTracking([]string{"huggingface", "openai"}, catalog.ScanParams{BatchSize: 500})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sess.SessionID, "session_"))
	assert.Equal(t, catalog.SessionRunning, sess.Status)
	assert.Equal(t, []string{"huggingface", "openai"}, sess.Providers)

	// The created → running transition wrote the first checkpoint.
	require.Len(t, sess.CheckpointIDs, 1)
	cp, err := st.LoadCheckpoint(sess.CheckpointIDs[0])
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, cp.SessionID)
	assert.Equal(t, catalog.SessionRunning, cp.Status)

	// Periodic tasks are armed.
	assert.True(t, sched.Scheduled(checkpointTask(sess.SessionID)))
	assert.True(t, sched.Scheduled(autosaveTask(sess.SessionID)))

	active := tr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, sess.SessionID, active[0].SessionID)
}

func TestStartTrackingRequiresProviders(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	_, err := tr.StartTracking(nil, catalog.ScanParams{})
	assert.True(t, errors.IsValidation(err))
}

func TestLifecycle(t *testing.T) {
	tr, sched, st := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.Pause(sid))
	got, err := tr.Session(sid)
	require.NoError(t, err)
	assert.Equal(t, catalog.SessionPaused, got.Status)
	assert.Len(t, got.CheckpointIDs, 2)

	require.NoError(t, tr.Resume(sid))
	got, err = tr.Session(sid)
	require.NoError(t, err)
	assert.Equal(t, catalog.SessionRunning, got.Status)
	assert.Len(t, got.CheckpointIDs, 3)

	// Auto-save so completion has a progress artifact to clean up.
	sched.Fire(autosaveTask(sid))
	var saved catalog.ScanSession
	require.NoError(t, st.ReadJSON(storage.KindSession, sid, &saved))

	require.NoError(t, tr.Complete(sid))

	assert.Empty(t, tr.Active())
	_, err = tr.Session(sid)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)

	// Tasks are disarmed, the progress artifact is gone, and the session
	// landed in the history log with its terminal state.
	assert.False(t, sched.Scheduled(checkpointTask(sid)))
	assert.False(t, sched.Scheduled(autosaveTask(sid)))
	assert.True(t, errors.IsNotFound(st.ReadJSON(storage.KindSession, sid, &saved)))

	history, err := tr.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sid, history[0].SessionID)
	assert.Equal(t, catalog.SessionCompleted, history[0].Status)
	require.NotNil(t, history[0].EndedAt)
	assert.Len(t, history[0].CheckpointIDs, 4)
}

func TestInvalidTransitions(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	// running → running is not an edge.
	assert.ErrorIs(t, tr.Resume(sid), errors.ErrInvalidTransition)

	require.NoError(t, tr.Pause(sid))
	assert.ErrorIs(t, tr.Pause(sid), errors.ErrInvalidTransition)

	// Terminal sessions leave the active set, so a second completion is a
	// lookup failure rather than a transition failure.
	require.NoError(t, tr.Complete(sid))
	assert.ErrorIs(t, tr.Complete(sid), errors.ErrSessionNotFound)
	assert.ErrorIs(t, tr.Pause("session_nope"), errors.ErrSessionNotFound)
}

func TestFailRecordsCause(t *testing.T) {
	tr, _, st := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.Fail(sid, errors.New("provider wedged at offset 4200")))

	history, err := tr.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, catalog.SessionFailed, history[0].Status)
	assert.Contains(t, history[0].Errors, "provider wedged at offset 4200")

	// The terminal checkpoint carries the cause in its trailing errors.
	last := history[0].CheckpointIDs[len(history[0].CheckpointIDs)-1]
	cp, err := st.LoadCheckpoint(last)
	require.NoError(t, err)
	assert.Equal(t, catalog.SessionFailed, cp.Status)
	assert.Contains(t, cp.RecentErrors, "provider wedged at offset 4200")
}

func TestUpdateProgress(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.UpdateProgress(sid, 50, 200, "scanning"))
	got, err := tr.Session(sid)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Progress.Processed)
	assert.Equal(t, int64(200), got.Progress.Total)
	assert.Equal(t, 25, got.Progress.Percentage)
	assert.Equal(t, "scanning", got.Progress.Phase)

	// Zero total and empty phase keep their previous values; an overrun
	// clamps to 100.
	require.NoError(t, tr.UpdateProgress(sid, 500, 0, ""))
	got, err = tr.Session(sid)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Progress.Total)
	assert.Equal(t, 100, got.Progress.Percentage)
	assert.Equal(t, "scanning", got.Progress.Phase)

	assert.ErrorIs(t, tr.UpdateProgress("session_nope", 1, 1, ""), errors.ErrSessionNotFound)
}

func TestUpdateProgressThroughputAndETA(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	base := time.Unix(1700000000, 0)
	tr.now = func() time.Time { return base }

	sess := startSession(t, tr)
	sid := sess.SessionID

	tr.now = func() time.Time { return base.Add(10 * time.Second) }
	require.NoError(t, tr.UpdateProgress(sid, 100, 400, "scanning"))

	got, err := tr.Session(sid)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got.Progress.Throughput, 0.001)
	assert.Equal(t, 30*time.Second, got.Progress.ETA)
}

func TestThroughputWindowDropsStaleSamples(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	base := time.Unix(1700000000, 0)
	tr.now = func() time.Time { return base }

	sess := startSession(t, tr)
	sid := sess.SessionID

	// The only prior sample is 40s old, outside the window, so the rate
	// cannot be derived yet.
	tr.now = func() time.Time { return base.Add(40 * time.Second) }
	require.NoError(t, tr.UpdateProgress(sid, 100, 400, "scanning"))
	got, err := tr.Session(sid)
	require.NoError(t, err)
	assert.Zero(t, got.Progress.Throughput)
	assert.Zero(t, got.Progress.ETA)

	tr.now = func() time.Time { return base.Add(50 * time.Second) }
	require.NoError(t, tr.UpdateProgress(sid, 200, 400, "scanning"))
	got, err = tr.Session(sid)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got.Progress.Throughput, 0.001)
}

func TestShouldStop(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	assert.False(t, tr.ShouldStop(sid))

	require.NoError(t, tr.RequestStop(sid))
	assert.True(t, tr.ShouldStop(sid))

	// The flag requests a stop; the state changes when the loop confirms.
	got, err := tr.Session(sid)
	require.NoError(t, err)
	assert.Equal(t, catalog.SessionRunning, got.Status)

	require.NoError(t, tr.Stop(sid))
	history, err := tr.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, catalog.SessionStopped, history[0].Status)

	// Unknown sessions read as stop so orphaned loops wind down.
	assert.True(t, tr.ShouldStop(sid))
	assert.ErrorIs(t, tr.RequestStop(sid), errors.ErrSessionNotFound)
}

func TestCountersAndMessages(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.RecordCounts(sid, 3, 1))
	require.NoError(t, tr.RecordCounts(sid, 2, 0))
	require.NoError(t, tr.AddError(sid, "batch 7 timed out"))
	require.NoError(t, tr.AddWarning(sid, "missing pricing for 12 models"))

	got, err := tr.Session(sid)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Progress.Skipped)
	assert.Equal(t, int64(1), got.Progress.Failed)
	assert.Equal(t, []string{"batch 7 timed out"}, got.Errors)
	assert.Equal(t, []string{"missing pricing for 12 models"}, got.Warnings)
}

func TestScheduledTasksDriveCadence(t *testing.T) {
	tr, sched, st := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.UpdateProgress(sid, 250, 1000, "scanning"))

	sched.Fire(checkpointTask(sid))
	got, err := tr.Session(sid)
	require.NoError(t, err)
	require.Len(t, got.CheckpointIDs, 2)

	cp, err := st.LoadCheckpoint(got.CheckpointIDs[1])
	require.NoError(t, err)
	assert.Equal(t, int64(250), cp.Progress.Processed)

	sched.Fire(autosaveTask(sid))
	var saved catalog.ScanSession
	require.NoError(t, st.ReadJSON(storage.KindSession, sid, &saved))
	assert.Equal(t, sid, saved.SessionID)
	assert.Equal(t, catalog.SessionRunning, saved.Status)
	assert.Equal(t, int64(250), saved.Progress.Processed)
}

func TestCloseStopsTasksAndKeepsState(t *testing.T) {
	tr, sched, _ := newTestTracker(t)
	a := startSession(t, tr)
	b := startSession(t, tr)

	require.NoError(t, tr.Close())

	assert.False(t, sched.Scheduled(checkpointTask(a.SessionID)))
	assert.False(t, sched.Scheduled(autosaveTask(b.SessionID)))

	// Close is shutdown, not completion: sessions keep their state and
	// each picked up a final checkpoint.
	active := tr.Active()
	require.Len(t, active, 2)
	for _, sess := range active {
		assert.Equal(t, catalog.SessionRunning, sess.Status)
		assert.Len(t, sess.CheckpointIDs, 2)
	}
}

func TestPauseAll(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	a := startSession(t, tr)
	b := startSession(t, tr)

	// One session is already paused; the sweep must not trip on it.
	require.NoError(t, tr.Pause(a.SessionID))

	tr.PauseAll()

	for _, sid := range []string{a.SessionID, b.SessionID} {
		got, err := tr.Session(sid)
		require.NoError(t, err)
		assert.Equal(t, catalog.SessionPaused, got.Status)
	}
}

func TestHandleSignalsPausesActiveSessions(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)

	stop := tr.HandleSignals(context.Background())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	require.Eventually(t, func() bool {
		got, err := tr.Session(sess.SessionID)
		return err == nil && got.Status == catalog.SessionPaused
	}, 2*time.Second, 10*time.Millisecond)
}
