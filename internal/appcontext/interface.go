// Package appcontext defines the application context interface commands run
// against. Commands accept this interface instead of the concrete app type,
// which keeps them testable with the Mock below and free of import cycles.
package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout"
	"github.com/modelscout/modelscout/internal/storage"
)

// Interface is the dependency surface the CLI commands need.
type Interface interface {
	// Scout returns the shared scout instance, creating it lazily from the
	// application configuration. Thread-safe; only one instance is built.
	Scout() (modelscout.Scout, error)

	// ScoutWithOptions builds a fresh scout with custom options for
	// commands whose configuration diverges from the default instance.
	ScoutWithOptions(...modelscout.Option) (modelscout.Scout, error)

	// Store returns the artifact store rooted at the configured storage
	// directory, opening it lazily. Commands use it for offline work on
	// persisted scans, results, and session logs.
	Store() (*storage.Store, error)

	// Logger returns the configured logger.
	Logger() *zerolog.Logger

	// OutputFormat returns the requested output format (table, json,
	// yaml, wide); empty means auto-detect.
	OutputFormat() string

	// APIKey returns the configured API key for a provider, or "".
	APIKey(provider string) string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
