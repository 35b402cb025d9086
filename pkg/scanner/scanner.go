// Package scanner discovers models from registered providers. Fixed-catalog
// providers are fetched in one call; hub-scale providers run a resumable
// paginated loop that streams records to disk. At most one scan per provider
// runs at a time.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modelscout/modelscout/internal/metrics"
	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/statestore"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
	"github.com/modelscout/modelscout/pkg/ratelimit"
)

// ProgressSink receives scan progress and answers stop requests. The
// progress tracker satisfies it; a nil sink disables both.
type ProgressSink interface {
	UpdateProgress(sessionID string, processed, total int64, phase string) error
	ShouldStop(sessionID string) bool
}

// Options tune one scan.
type Options struct {
	// MaxItems stops a paginated scan after this many fetched items.
	// Zero means unbounded.
	MaxItems int64

	// BatchSize overrides the strategy's page size.
	BatchSize int

	// Full requests extended metadata from providers that support it.
	Full bool

	// Resume continues a paginated scan from the persisted cursor.
	Resume bool

	// Filter predicate for hub-scale sources.
	MinDownloads   int64
	ExcludePrivate bool
	ExcludeGated   bool
	Tags           []string // Allow-list; empty admits all
	Tasks          []string
	Libraries      []string

	// SessionID ties the scan to a tracked session for progress and
	// cooperative stop.
	SessionID string

	// Multi-provider behavior.
	Providers       []string // Subset to scan; empty means all registered
	Parallel        bool
	ContinueOnError bool
}

// Scanner coordinates provider scans.
type Scanner struct {
	mu     sync.Mutex
	active map[string]bool

	clients     clientFactory
	strategy    strategyLookup
	configs     map[string]providers.Config
	limiter     ratelimit.Limiter
	store       *storage.Store
	state       *statestore.Store
	metrics     *metrics.Metrics
	progress    ProgressSink
	listNames   func() []string
	backoffBase time.Duration
	backoffCap  time.Duration
}

type (
	clientFactory  func(name string, cfg providers.Config) (providers.Client, error)
	strategyLookup func(name string) providers.Strategy
)

// Option configures a Scanner.
type Option func(*Scanner)

// WithClientFactory replaces registry lookup, mainly for tests.
func WithClientFactory(fn clientFactory) Option {
	return func(s *Scanner) { s.clients = fn }
}

// WithStrategyLookup replaces the strategy table, mainly for tests.
func WithStrategyLookup(fn strategyLookup) Option {
	return func(s *Scanner) { s.strategy = fn }
}

// WithConfigs supplies per-provider credentials and endpoints.
func WithConfigs(cfgs map[string]providers.Config) Option {
	return func(s *Scanner) { s.configs = cfgs }
}

// WithLimiter sets the request admission limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Scanner) { s.limiter = l }
}

// WithStorage sets the artifact store used for streaming scan output.
func WithStorage(st *storage.Store) Option {
	return func(s *Scanner) { s.store = st }
}

// WithStateStore sets the cursor store enabling resumable scans.
func WithStateStore(st *statestore.Store) Option {
	return func(s *Scanner) { s.state = st }
}

// WithMetrics sets the instrumentation sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithProgress sets the progress sink for tracked sessions.
func WithProgress(p ProgressSink) Option {
	return func(s *Scanner) { s.progress = p }
}

// WithFetchBackoff overrides the fetch-failure backoff curve.
func WithFetchBackoff(base, cap time.Duration) Option {
	return func(s *Scanner) {
		s.backoffBase = base
		s.backoffCap = cap
	}
}

// New builds a Scanner backed by the provider registry.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		active:      make(map[string]bool),
		clients:     providers.New,
		strategy:    providers.StrategyFor,
		limiter:     ratelimit.Noop{},
		listNames:   providers.List,
		backoffBase: constants.RetryBackoff,
		backoffCap:  constants.MaxRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.Noop{}
	}
	return s
}

// ScanProvider scans one provider, dispatching on its discovery strategy.
// A second scan for the same provider is rejected with ErrScanActive while
// the first is running.
func (s *Scanner) ScanProvider(ctx context.Context, name string, opts Options) (*catalog.ScanResult, error) {
	if err := s.acquire(name); err != nil {
		return nil, err
	}
	defer s.release(name)

	ctx = logging.WithProvider(ctx, name)
	log := logging.Ctx(ctx)

	client, err := s.clients(name, s.configs[name])
	if err != nil {
		s.metrics.ScanCompleted(name, "failed")
		return nil, err
	}

	strat := s.strategy(name)
	start := time.Now()

	var result *catalog.ScanResult
	switch strat.Discovery {
	case providers.DiscoveryPaginated:
		result, err = s.scanHub(ctx, client, name, strat, opts)
	case providers.DiscoveryAPI:
		if ierr := client.Initialize(ctx); ierr != nil {
			s.metrics.ScanCompleted(name, "failed")
			return nil, errors.WrapFetch(name, "initialize", 0, ierr)
		}
		result, err = s.scanComplete(ctx, client, name, opts)
	default:
		result, err = s.scanComplete(ctx, client, name, opts)
	}

	if result != nil {
		result.Stats.Duration = time.Since(start)
		result.SessionID = opts.SessionID
		s.metrics.AddScanItems(name, int(result.Stats.Scanned))
		s.persistResult(ctx, result)
	}

	switch {
	case err == nil:
		s.metrics.ScanCompleted(name, "completed")
		log.Info().
			Int64("scanned", result.Stats.Scanned).
			Int64("filtered", result.Stats.Filtered).
			Dur("duration", result.Stats.Duration).
			Msg("scan completed")
	case errors.IsStopped(err):
		s.metrics.ScanCompleted(name, "stopped")
	default:
		s.metrics.ScanCompleted(name, "failed")
	}
	return result, err
}

// ScanAllProviders scans a set of providers. Parallel scans run all
// providers concurrently and never cancel each other; sequential scans stop
// at the first failure unless ContinueOnError is set. Per-provider failures
// are collected into the result either way.
func (s *Scanner) ScanAllProviders(ctx context.Context, opts Options) (*catalog.MultiScanResult, error) {
	names := opts.Providers
	if len(names) == 0 {
		names = s.listNames()
	}
	sort.Strings(names)

	start := time.Now()
	multi := &catalog.MultiScanResult{
		Results:  make(map[string]*catalog.ScanResult, len(names)),
		Failures: make(map[string]string),
	}

	if opts.Parallel {
		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		for _, name := range names {
			g.Go(func() error {
				res, err := s.ScanProvider(ctx, name, opts)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					multi.Failures[name] = err.Error()
				}
				if res != nil {
					multi.Results[name] = res
				}
				return nil
			})
		}
		_ = g.Wait()
		multi.Duration = time.Since(start)
		return multi, nil
	}

	for _, name := range names {
		res, err := s.ScanProvider(ctx, name, opts)
		if res != nil {
			multi.Results[name] = res
		}
		if err != nil {
			multi.Failures[name] = err.Error()
			if !opts.ContinueOnError {
				multi.Duration = time.Since(start)
				return multi, err
			}
		}
	}
	multi.Duration = time.Since(start)
	return multi, nil
}

// scanComplete fetches a fixed catalog in one call.
func (s *Scanner) scanComplete(ctx context.Context, client providers.Client, name string, opts Options) (*catalog.ScanResult, error) {
	if err := s.limiter.AcquirePermission(ctx, name, ratelimit.PermissionOptions{}); err != nil {
		return nil, err
	}

	models, err := client.DiscoverModels(ctx, providers.DiscoverOptions{Full: opts.Full})
	if err != nil {
		return nil, err
	}

	result := &catalog.ScanResult{Provider: name}
	result.Stats.Scanned = int64(len(models))

	filter := newRecordFilter(opts)
	for i := range models {
		if !filter.admit(&models[i]) {
			result.Stats.Filtered++
			continue
		}
		models[i].Normalize()
		result.Models = append(result.Models, models[i])
	}
	return result, nil
}

// persistResult writes the scan artifact; persistence problems are logged,
// never fatal to a finished scan.
func (s *Scanner) persistResult(ctx context.Context, result *catalog.ScanResult) {
	if s.store == nil {
		return
	}
	id := storage.NewID(storage.KindScan)
	if result.Stream != "" {
		id = result.Stream
	}
	if _, err := s.store.WriteJSON(storage.KindScan, id, result); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("scan artifact write failed")
	}
}

func (s *Scanner) acquire(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[name] {
		return fmt.Errorf("%w: %s", errors.ErrScanActive, name)
	}
	s.active[name] = true
	return nil
}

func (s *Scanner) release(name string) {
	s.mu.Lock()
	delete(s.active, name)
	s.mu.Unlock()
}

// Active reports providers with a scan in flight, sorted.
func (s *Scanner) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.active))
	for name := range s.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
