package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout"
	"github.com/modelscout/modelscout/internal/storage"
)

// Mock implements Interface for command tests. Each method delegates to the
// corresponding function field when set and returns a zero value otherwise.
type Mock struct {
	ScoutFunc            func() (modelscout.Scout, error)
	ScoutWithOptionsFunc func(...modelscout.Option) (modelscout.Scout, error)
	StoreFunc            func() (*storage.Store, error)
	LoggerFunc           func() *zerolog.Logger
	OutputFormatFunc     func() string
	APIKeyFunc           func(provider string) string
	VersionFunc          func() string
	CommitFunc           func() string
	DateFunc             func() string
	BuiltByFunc          func() string
}

// Scout returns a scout using the mock function or nil.
func (m *Mock) Scout() (modelscout.Scout, error) {
	if m.ScoutFunc != nil {
		return m.ScoutFunc()
	}
	return nil, nil
}

// ScoutWithOptions returns a scout using the mock function or nil.
func (m *Mock) ScoutWithOptions(opts ...modelscout.Option) (modelscout.Scout, error) {
	if m.ScoutWithOptionsFunc != nil {
		return m.ScoutWithOptionsFunc(opts...)
	}
	return nil, nil
}

// Store returns a store using the mock function or nil.
func (m *Mock) Store() (*storage.Store, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc()
	}
	return nil, nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the format using the mock function or "".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return ""
}

// APIKey returns a key using the mock function or "".
func (m *Mock) APIKey(provider string) string {
	if m.APIKeyFunc != nil {
		return m.APIKeyFunc(provider)
	}
	return ""
}

// Version returns the version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns the commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns the date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns the builder using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
