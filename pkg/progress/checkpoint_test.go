package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
)

func TestCheckpointSnapshotsSession(t *testing.T) {
	tr, _, st := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.UpdateProgress(sid, 500, 1000, "scanning"))

	cp, err := tr.Checkpoint(sid)
	require.NoError(t, err)
	assert.Equal(t, sid, cp.SessionID)
	assert.Equal(t, catalog.SessionRunning, cp.Status)
	assert.Equal(t, "scanning", cp.Phase)
	assert.Equal(t, int64(500), cp.Progress.Processed)
	assert.Equal(t, int64(1000), cp.Progress.Total)

	// Without an explicit cursor the resume offset mirrors the processed
	// count.
	assert.Equal(t, int64(500), cp.ResumeOffset)

	// Resource sample comes from the live process.
	assert.Greater(t, cp.Resources.Goroutines, 0)
	assert.Greater(t, cp.Resources.HeapMB, 0.0)

	// The checkpoint is durable and the session records its id.
	loaded, err := st.LoadCheckpoint(cp.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, cp.Progress, loaded.Progress)

	got, err := tr.Session(sid)
	require.NoError(t, err)
	assert.Equal(t, cp.CheckpointID, got.CheckpointIDs[len(got.CheckpointIDs)-1])
}

func TestCheckpointUsesRecordedOffset(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.UpdateProgress(sid, 500, 1000, "scanning"))
	require.NoError(t, tr.RecordOffset(sid, 4200))

	cp, err := tr.Checkpoint(sid)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), cp.ResumeOffset)
}

func TestCheckpointKeepsTrailingErrors(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	for i := 0; i < 12; i++ {
		require.NoError(t, tr.AddError(sid, fmt.Sprintf("batch %d failed", i)))
	}

	cp, err := tr.Checkpoint(sid)
	require.NoError(t, err)
	require.Len(t, cp.RecentErrors, 10)
	assert.Equal(t, "batch 2 failed", cp.RecentErrors[0])
	assert.Equal(t, "batch 11 failed", cp.RecentErrors[9])
}

func TestResumeFromCheckpoint(t *testing.T) {
	tr, sched, st := newTestTracker(t)

	sess, err := tr.StartTracking([]string{"huggingface", "openai"}, catalog.ScanParams{BatchSize: 500, Concurrency: 8})
	require.NoError(t, err)
	sid := sess.SessionID

	require.NoError(t, tr.UpdateProgress(sid, 500, 1000, "scanning"))
	require.NoError(t, tr.RecordCounts(sid, 7, 3))
	require.NoError(t, tr.AddError(sid, "batch 3 failed"))
	require.NoError(t, tr.RecordOffset(sid, 600))

	// Auto-save persists the identity fields a checkpoint does not carry.
	sched.Fire(autosaveTask(sid))
	cp, err := tr.Checkpoint(sid)
	require.NoError(t, err)

	// Shut down as a crash would leave things: state on disk, tracker gone.
	require.NoError(t, tr.Close())
	tr2 := New(WithStorage(st), WithScheduler(sched), WithLogger(logging.Nop))

	base := time.Unix(1700000000, 0)
	tr2.now = func() time.Time { return base }

	restored, err := tr2.ResumeFromCheckpoint(cp.CheckpointID)
	require.NoError(t, err)

	assert.Equal(t, sid, restored.SessionID)
	assert.Equal(t, catalog.SessionRunning, restored.Status)
	assert.Equal(t, int64(500), restored.Progress.Processed)
	assert.Equal(t, int64(1000), restored.Progress.Total)
	assert.Equal(t, int64(7), restored.Progress.Skipped)
	assert.Equal(t, int64(3), restored.Progress.Failed)
	assert.Equal(t, 50, restored.Progress.Percentage)
	assert.Equal(t, "scanning", restored.Progress.Phase)
	assert.Equal(t, []string{"huggingface", "openai"}, restored.Providers)
	assert.Equal(t, 500, restored.Params.BatchSize)
	assert.Contains(t, restored.Errors, "batch 3 failed")

	// Rates do not survive the gap.
	assert.Zero(t, restored.Progress.Throughput)
	assert.Zero(t, restored.Progress.ETA)

	// Periodic tasks restart with the session.
	assert.True(t, sched.Scheduled(checkpointTask(sid)))
	assert.True(t, sched.Scheduled(autosaveTask(sid)))

	// Post-resume throughput measures post-resume work only.
	tr2.now = func() time.Time { return base.Add(10 * time.Second) }
	require.NoError(t, tr2.UpdateProgress(sid, 600, 0, ""))
	got, err := tr2.Session(sid)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got.Progress.Throughput, 0.001)
}

func TestResumeWithoutAutosaveKeepsCounters(t *testing.T) {
	tr, _, st := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.UpdateProgress(sid, 300, 900, "scanning"))
	cp, err := tr.Checkpoint(sid)
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	tr2 := New(WithStorage(st), WithScheduler(NewManualScheduler()), WithLogger(logging.Nop))
	restored, err := tr2.ResumeFromCheckpoint(cp.CheckpointID)
	require.NoError(t, err)

	assert.Equal(t, int64(300), restored.Progress.Processed)
	assert.Empty(t, restored.Providers)
}

func TestResumeRejectsActiveSession(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)

	cp, err := tr.Checkpoint(sess.SessionID)
	require.NoError(t, err)

	_, err = tr.ResumeFromCheckpoint(cp.CheckpointID)
	assert.True(t, errors.IsValidation(err))
}

func TestResumeRejectsTerminalCheckpoint(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	sess := startSession(t, tr)
	require.NoError(t, tr.Complete(sess.SessionID))

	history, err := tr.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	last := history[0].CheckpointIDs[len(history[0].CheckpointIDs)-1]

	_, err = tr.ResumeFromCheckpoint(last)
	assert.True(t, errors.IsValidation(err))
}

func TestResumeUnknownCheckpoint(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	_, err := tr.ResumeFromCheckpoint("checkpoint_20240101-000000_deadbeef")
	assert.ErrorIs(t, err, errors.ErrCheckpointNotFound)
}

func TestResumeRequiresStorage(t *testing.T) {
	tr := New(WithScheduler(NewManualScheduler()), WithLogger(logging.Nop))

	_, err := tr.ResumeFromCheckpoint("checkpoint_20240101-000000_deadbeef")
	assert.True(t, errors.IsValidation(err))
}

func TestTrackerWithoutStorageStaysInMemory(t *testing.T) {
	tr := New(WithScheduler(NewManualScheduler()), WithLogger(logging.Nop))
	sess := startSession(t, tr)

	cp, err := tr.Checkpoint(sess.SessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, cp.CheckpointID)

	require.NoError(t, tr.Complete(sess.SessionID))
	history, err := tr.History()
	require.NoError(t, err)
	assert.Nil(t, history)
}

func TestResumeOffsetFallsBackToProcessed(t *testing.T) {
	tr, _, st := newTestTracker(t)
	sess := startSession(t, tr)
	sid := sess.SessionID

	require.NoError(t, tr.UpdateProgress(sid, 42, 100, "scanning"))
	cp, err := tr.Checkpoint(sid)
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	tr2 := New(WithStorage(st), WithScheduler(NewManualScheduler()), WithLogger(logging.Nop))
	restored, err := tr2.ResumeFromCheckpoint(cp.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), restored.Progress.Processed)
}
