package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	logging.SetDefault(logger)

	logging.Debug().Msg("debug message")
	logging.Info().Str("provider", "huggingface").Int64("offset", 4200).Msg("fetching batch")
	logging.Warn().Msg("warning message")
	logging.Error().Msg("error message")

	output := buf.String()
	if !strings.Contains(output, "fetching batch") {
		t.Errorf("Expected info message in output, got: %s", output)
	}
	if !strings.Contains(output, `"provider":"huggingface"`) {
		t.Errorf("Expected provider field in output, got: %s", output)
	}
	if !strings.Contains(output, `"offset":4200`) {
		t.Errorf("Expected offset field in output, got: %s", output)
	}
}

func TestNewWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf)

	logger.Info().Msg("to buffer")

	if !strings.Contains(buf.String(), "to buffer") {
		t.Errorf("New() logger did not write to given writer: %s", buf.String())
	}
}

func TestTestLoggerCapture(t *testing.T) {
	tl := logging.NewTestLogger(t)

	tl.Info().Msg("one")
	tl.Warn().Msg("two")
	tl.Error().Msg("three")

	if got := tl.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
	if !tl.Contains("two") {
		t.Errorf("captured output missing entry: %s", tl.Output())
	}

	tl.Clear()
	if got := tl.Count(); got != 0 {
		t.Errorf("Count() after Clear = %d, want 0", got)
	}
}

func TestCaptureLoggingForTest(t *testing.T) {
	tl := logging.CaptureLoggingForTest(t)

	logging.Info().Str("session_id", "sess_1").Msg("session started")

	if !tl.Contains("sess_1") {
		t.Errorf("default logger did not capture session field: %s", tl.Output())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	nop := logging.NewNopLogger()
	// Must not panic; output goes nowhere.
	nop.Error().Str("provider", "openai").Msg("discarded")
}

func TestLevelFiltering(t *testing.T) {
	tl := logging.NewTestLogger(t)
	limited := tl.Logger.Level(zerolog.WarnLevel)

	limited.Debug().Msg("hidden")
	limited.Warn().Msg("visible")

	if tl.Contains("hidden") {
		t.Errorf("debug event leaked past warn level: %s", tl.Output())
	}
	if !tl.Contains("visible") {
		t.Errorf("warn event missing: %s", tl.Output())
	}
}
