// Package app wires configuration, logging, and the scout client for the
// modelscout CLI. It centralizes dependency construction so commands stay
// thin and testable.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout"
	"github.com/modelscout/modelscout/internal/appcontext"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/errors"
)

// App is the modelscout CLI application with its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Lazily built singletons
	mu    sync.RWMutex
	scout modelscout.Scout
	store *storage.Store
}

// Ensure App implements the command context interface at compile time.
var _ appcontext.Interface = (*App)(nil)

// New creates an App with the given version information. Configuration is
// loaded from all sources; functional options can override pieces of it.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// OutputFormat returns the requested output format; empty means
// auto-detect.
func (a *App) OutputFormat() string { return a.config.Output }

// APIKey returns the configured API key for a provider.
func (a *App) APIKey(provider string) string { return a.config.APIKey(provider) }

// Scout returns the shared scout instance, creating it lazily. Thread-safe;
// only one instance is built.
func (a *App) Scout() (modelscout.Scout, error) {
	a.mu.RLock()
	if a.scout != nil {
		sc := a.scout
		a.mu.RUnlock()
		return sc, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scout != nil {
		return a.scout, nil
	}

	sc, err := modelscout.New(a.buildScoutOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating scout: %w", err)
	}
	a.scout = sc
	return sc, nil
}

// ScoutWithOptions builds a fresh scout with custom options for commands
// whose configuration diverges from the default instance.
func (a *App) ScoutWithOptions(opts ...modelscout.Option) (modelscout.Scout, error) {
	sc, err := modelscout.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating scout: %w", err)
	}
	return sc, nil
}

// Store returns the artifact store rooted at the configured storage
// directory, opening it lazily.
func (a *App) Store() (*storage.Store, error) {
	a.mu.RLock()
	if a.store != nil {
		st := a.store
		a.mu.RUnlock()
		return st, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}

	st, err := storage.New(a.config.StorageDir)
	if err != nil {
		return nil, errors.WrapPersist("open", a.config.StorageDir, err)
	}
	a.store = st
	return st, nil
}

// Shutdown releases the application's resources. Safe to call when nothing
// was ever built.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.RLock()
	sc := a.scout
	a.mu.RUnlock()

	if sc != nil {
		if err := sc.Close(); err != nil {
			return fmt.Errorf("closing scout: %w", err)
		}
	}
	return nil
}

// buildScoutOptions constructs scout options from the app configuration.
func (a *App) buildScoutOptions() []modelscout.Option {
	opts := []modelscout.Option{
		modelscout.WithLogger(a.logger),
	}

	if a.config.StorageDir != "" {
		opts = append(opts, modelscout.WithStorageDir(a.config.StorageDir))
	}
	if a.config.StatePath != "" {
		opts = append(opts, modelscout.WithStateStore(a.config.StatePath))
	}
	if a.config.UpdateInterval > 0 {
		opts = append(opts, modelscout.WithUpdateInterval(a.config.UpdateInterval))
	}

	// Provider credentials, where the environment carries them.
	cfgs := make(map[string]modelscout.ProviderConfig)
	for provider := range apiKeyEnv {
		if key := a.config.APIKey(provider); key != "" {
			cfgs[provider] = modelscout.ProviderConfig{APIKey: key}
		}
	}
	if len(cfgs) > 0 {
		opts = append(opts, modelscout.WithProviders(cfgs))
	}

	return opts
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithScout sets a custom scout instance (useful for testing).
func WithScout(sc modelscout.Scout) Option {
	return func(a *App) error {
		a.scout = sc
		return nil
	}
}
