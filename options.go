package modelscout

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout/internal/metrics"
	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/pkg/aggregator"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/embedding"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/filter"
	"github.com/modelscout/modelscout/pkg/logging"
	"github.com/modelscout/modelscout/pkg/progress"
	"github.com/modelscout/modelscout/pkg/ratelimit"
	"github.com/modelscout/modelscout/pkg/scanner"
	"github.com/modelscout/modelscout/pkg/updater"
)

// ProviderConfig carries the credentials and endpoint overrides for one
// provider client. A zero value is valid for providers that work
// unauthenticated.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// config collects the construction-time settings of a Scout.
type config struct {
	storageDir   string
	statePath    string
	logger       *zerolog.Logger
	embedder     embedding.Service
	limiter      ratelimit.Limiter
	providerCfgs map[string]ProviderConfig
	metrics      *metrics.Metrics
	mergeConfig  *aggregator.MergeConfig
	threshold    float64
	scheduler    progress.Scheduler
	interval     time.Duration
	rules        []filter.CategoryRule
}

// Option configures a Scout instance.
type Option func(*config) error

// newConfig applies options over the defaults.
func newConfig(opts ...Option) (*config, error) {
	cfg := &config{logger: logging.Default()}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithStorageDir roots the artifact store at dir. The state store defaults
// to state.db under it unless WithStateStore names another path.
func WithStorageDir(dir string) Option {
	return func(c *config) error {
		if dir == "" {
			return errors.NewValidationError("dir", dir, "storage directory required")
		}
		c.storageDir = dir
		return nil
	}
}

// WithStateStore opens the bbolt catalog state at path.
func WithStateStore(path string) Option {
	return func(c *config) error {
		if path == "" {
			return errors.NewValidationError("path", path, "state store path required")
		}
		c.statePath = path
		return nil
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return errors.NewValidationError("logger", nil, "logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithEmbeddings attaches an embedding service, enabling the embedding
// similarity signal during aggregation.
func WithEmbeddings(svc embedding.Service) Option {
	return func(c *config) error {
		c.embedder = svc
		return nil
	}
}

// WithRateLimiter replaces the default per-provider token buckets.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(c *config) error {
		if l == nil {
			return errors.NewValidationError("limiter", nil, "limiter must not be nil")
		}
		c.limiter = l
		return nil
	}
}

// WithProviders sets per-provider credentials and endpoint overrides, keyed
// by registry name. Providers without an entry run with a zero config.
func WithProviders(cfgs map[string]ProviderConfig) Option {
	return func(c *config) error {
		for name := range cfgs {
			if !providers.Has(name) {
				return errors.NewNotFoundError("provider", name)
			}
		}
		c.providerCfgs = cfgs
		return nil
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithMergeConfig replaces the aggregator's conflict-resolution table.
func WithMergeConfig(cfg aggregator.MergeConfig) Option {
	return func(c *config) error {
		c.mergeConfig = &cfg
		return nil
	}
}

// WithThreshold sets the duplicate-merge threshold, in (0,1].
func WithThreshold(t float64) Option {
	return func(c *config) error {
		if t <= 0 || t > 1 {
			return errors.NewValidationError("threshold", t, "must be in (0,1]")
		}
		c.threshold = t
		return nil
	}
}

// WithScheduler replaces the tracker's wall-clock scheduler. Tests use this
// to drive checkpoint cadence manually.
func WithScheduler(s progress.Scheduler) Option {
	return func(c *config) error {
		c.scheduler = s
		return nil
	}
}

// WithUpdateInterval sets the default refresh interval for timestamp-gated
// updates.
func WithUpdateInterval(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.NewValidationError("interval", d, "must be positive")
		}
		c.interval = d
		return nil
	}
}

// WithCategoryRules replaces the refinement filter's builtin category table.
func WithCategoryRules(rules []filter.CategoryRule) Option {
	return func(c *config) error {
		c.rules = rules
		return nil
	}
}

// providerConfigs maps the public config shape onto the provider registry's.
func providerConfigs(cfgs map[string]ProviderConfig) map[string]providers.Config {
	if len(cfgs) == 0 {
		return nil
	}
	out := make(map[string]providers.Config, len(cfgs))
	for name, c := range cfgs {
		out[name] = providers.Config{
			APIKey:  c.APIKey,
			BaseURL: c.BaseURL,
			Timeout: c.Timeout,
		}
	}
	return out
}

// ScanOption adjusts one scan call.
type ScanOption func(*scanner.Options)

// newScanOptions folds scan options into the scanner's option struct.
func newScanOptions(opts ...ScanOption) scanner.Options {
	var o scanner.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ScanProviders restricts the scan to the named providers.
func ScanProviders(names ...string) ScanOption {
	return func(o *scanner.Options) { o.Providers = names }
}

// ScanParallel scans providers concurrently instead of sequentially.
func ScanParallel() ScanOption {
	return func(o *scanner.Options) { o.Parallel = true }
}

// ScanContinueOnError collects per-provider failures instead of stopping at
// the first one.
func ScanContinueOnError() ScanOption {
	return func(o *scanner.Options) { o.ContinueOnError = true }
}

// ScanMaxItems stops a paginated scan after n fetched items.
func ScanMaxItems(n int64) ScanOption {
	return func(o *scanner.Options) { o.MaxItems = n }
}

// ScanBatchSize overrides the provider strategy's page size.
func ScanBatchSize(n int) ScanOption {
	return func(o *scanner.Options) { o.BatchSize = n }
}

// ScanFull requests extended metadata where the provider API distinguishes.
func ScanFull() ScanOption {
	return func(o *scanner.Options) { o.Full = true }
}

// ScanResume continues a paginated scan from its persisted cursor.
func ScanResume() ScanOption {
	return func(o *scanner.Options) { o.Resume = true }
}

// ScanMinDownloads drops records below a download floor during admission.
func ScanMinDownloads(n int64) ScanOption {
	return func(o *scanner.Options) { o.MinDownloads = n }
}

// ScanExcludePrivate drops private models during admission.
func ScanExcludePrivate() ScanOption {
	return func(o *scanner.Options) { o.ExcludePrivate = true }
}

// ScanExcludeGated drops gated models during admission.
func ScanExcludeGated() ScanOption {
	return func(o *scanner.Options) { o.ExcludeGated = true }
}

// ScanTags admits only records carrying at least one of the given tags.
func ScanTags(tags ...string) ScanOption {
	return func(o *scanner.Options) { o.Tags = tags }
}

// ScanTasks admits only records with one of the given task labels.
func ScanTasks(tasks ...string) ScanOption {
	return func(o *scanner.Options) { o.Tasks = tasks }
}

// ScanSession attaches the scan to an existing tracked session.
func ScanSession(id string) ScanOption {
	return func(o *scanner.Options) { o.SessionID = id }
}

// AggregateOption adjusts one aggregation call.
type AggregateOption func(*aggregator.Options)

func newAggregateOptions(opts ...AggregateOption) aggregator.Options {
	var o aggregator.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AggregateThreshold overrides the duplicate threshold for one run.
func AggregateThreshold(t float64) AggregateOption {
	return func(o *aggregator.Options) { o.Threshold = t }
}

// AggregateSkipEmbeddings scores similarity without the embedding signal
// even when a service is configured.
func AggregateSkipEmbeddings() AggregateOption {
	return func(o *aggregator.Options) { o.SkipEmbeddings = true }
}

// RefineOption adjusts one refinement call.
type RefineOption func(*filter.Options)

func newRefineOptions(opts ...RefineOption) filter.Options {
	var o filter.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RefineCategories keeps only records matching one of the named categories.
func RefineCategories(names ...string) RefineOption {
	return func(o *filter.Options) { o.Categories = names }
}

// RefinePredicates applies the named registered predicates, in order.
func RefinePredicates(names ...string) RefineOption {
	return func(o *filter.Options) { o.Predicates = names }
}

// RefineWhere appends a custom predicate, run after the named ones.
func RefineWhere(p filter.Predicate) RefineOption {
	return func(o *filter.Options) { o.Custom = append(o.Custom, p) }
}

// RefineMinQuality drops records scoring below q.
func RefineMinQuality(q float64) RefineOption {
	return func(o *filter.Options) { o.MinQuality = q }
}

// RefineKeepOutliers skips the z-score outlier stage.
func RefineKeepOutliers() RefineOption {
	return func(o *filter.Options) { o.KeepOutliers = true }
}

// UpdateOption adjusts one update call.
type UpdateOption func(*updater.Options)

func newUpdateOptions(opts ...UpdateOption) updater.Options {
	var o updater.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// UpdateForce applies the refresh even when detection finds no changes.
func UpdateForce() UpdateOption {
	return func(o *updater.Options) { o.Force = true }
}

// UpdateNoRollback leaves a failed update in place for inspection.
func UpdateNoRollback() UpdateOption {
	return func(o *updater.Options) { o.NoRollback = true }
}

// UpdateSkipSnapshot skips the rollback baseline for one update.
func UpdateSkipSnapshot() UpdateOption {
	return func(o *updater.Options) { o.SkipSnapshot = true }
}

// UpdateStrategy overrides the provider's detection strategy.
func UpdateStrategy(s catalog.DetectionStrategy) UpdateOption {
	return func(o *updater.Options) { o.Strategy = s }
}

// UpdateInterval overrides the timestamp-gate refresh interval for one call.
func UpdateInterval(d time.Duration) UpdateOption {
	return func(o *updater.Options) { o.Interval = d }
}
