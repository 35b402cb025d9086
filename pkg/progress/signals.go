package progress

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// HandleSignals checkpoints and pauses every active session when SIGINT or
// SIGTERM arrives, so an interrupted process leaves resumable state behind.
// The handler disarms after the first signal, when ctx is done, or when the
// returned stop function is called; a second signal then behaves normally.
func (t *Tracker) HandleSignals(ctx context.Context) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			t.logger.Warn().
				Str("signal", sig.String()).
				Msg("signal received, checkpointing active sessions")
			t.PauseAll()
		case <-ctx.Done():
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// PauseAll checkpoints and pauses every active session. Sessions are
// handled in isolation: a failure or panic in one is logged and the sweep
// continues with the rest.
func (t *Tracker) PauseAll() {
	for _, id := range t.activeIDs() {
		t.pauseIsolated(id)
	}
}

func (t *Tracker) pauseIsolated(sessionID string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().
				Str("session", sessionID).
				Interface("panic", r).
				Msg("pause sweep panicked")
		}
	}()

	if _, err := t.Checkpoint(sessionID); err != nil {
		t.logger.Warn().Err(err).Str("session", sessionID).Msg("pause sweep checkpoint failed")
	}
	if err := t.Pause(sessionID); err != nil {
		// Already-paused sessions land here; the sweep only cares that
		// the session is not left running.
		t.logger.Debug().Err(err).Str("session", sessionID).Msg("pause sweep skipped session")
	}
}
