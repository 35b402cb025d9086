// Package constants provides shared constants used throughout the modelscout
// codebase. This includes timeouts, limits, file permissions, and other
// configuration values that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to provider APIs
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// ProviderFetchTimeout is the timeout for fetching one batch from a single provider
	ProviderFetchTimeout = 2 * time.Minute

	// BatchTimeout is the default hard deadline for one parallel work batch
	BatchTimeout = 1 * time.Minute

	// UpdateTimeout is the timeout for one incremental update operation
	UpdateTimeout = 5 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// LongRunningTimeout is for operations that may take extended time,
	// such as a full hub scan
	LongRunningTimeout = 30 * time.Minute

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// Progress and checkpoint cadence constants
const (
	// CheckpointInterval is how often a running session writes a checkpoint
	CheckpointInterval = 30 * time.Second

	// AutoSaveInterval is how often session progress is saved to its
	// lightweight progress file, independent of checkpointing
	AutoSaveInterval = 10 * time.Second

	// ResumePersistEvery is the number of processed items between resume
	// cursor writes during a large-scale scan
	ResumePersistEvery = 1000

	// ThroughputWindow is the sliding window used for throughput and ETA
	ThroughputWindow = 30 * time.Second

	// RecentErrorLimit is the number of trailing errors kept on a checkpoint
	RecentErrorLimit = 10
)

// Incremental update constants
const (
	// DefaultUpdateInterval is the refresh interval for timestamp-based
	// change detection
	DefaultUpdateInterval = 24 * time.Hour
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like API keys and state
	// databases (rw-------)
	SecureFilePermissions = 0600
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries = 3

	// ErrorBudgetMultiplier scales MaxRetries into the accumulated error
	// count that aborts a whole scan
	ErrorBudgetMultiplier = 10

	// MaxWorkers caps the parallel processor pool regardless of core count
	MaxWorkers = 8

	// DefaultBatchSize is the default number of items per work batch
	DefaultBatchSize = 100

	// DefaultPageSize is the default number of items per page for paginated sources
	DefaultPageSize = 100

	// MaxPageSize is the maximum allowed page size for paginated sources
	MaxPageSize = 1000

	// ChannelBufferSize is the default buffer size for channels
	ChannelBufferSize = 100

	// WriteBufferSize is the default buffer size for write operations
	WriteBufferSize = 4096

	// StreamBufferSize sizes buffered JSONL stream writes and caps the
	// longest line a stream reader will accept
	StreamBufferSize = 1 << 20

	// DefaultMemoryLimitMB is the heap ceiling for parallel work admission
	DefaultMemoryLimitMB = 512

	// MemorySampleInterval is the minimum spacing between heap samples
	MemorySampleInterval = 200 * time.Millisecond
)

// Rate limiting constants
const (
	// DefaultRateLimit is the default requests per second for providers
	// without specific limits
	DefaultRateLimit = 10

	// BurstSize is the token bucket burst size for rate limiting
	BurstSize = 5

	// PermissionTimeout is the default wait for a rate-limit permission
	PermissionTimeout = 30 * time.Second
)

// Cache constants
const (
	// CacheTTL is the default time-to-live for cached embeddings
	CacheTTL = 15 * time.Minute

	// CacheCleanupInterval is how often to clean expired cache entries
	CacheCleanupInterval = 5 * time.Minute
)

// Similarity threshold tiers for duplicate detection
const (
	// ThresholdExact requires identical records
	ThresholdExact = 1.0

	// ThresholdHigh is near-certain duplication
	ThresholdHigh = 0.95

	// ThresholdMedium is the default duplicate-merge threshold
	ThresholdMedium = 0.85

	// ThresholdLow is speculative duplication, useful for review listings
	ThresholdLow = 0.7

	// EmbeddingClusterThreshold groups records by embedding similarity
	EmbeddingClusterThreshold = 0.8
)

// Path constants
const (
	// DefaultStorageDir is the default root for result, checkpoint, snapshot,
	// and delta artifacts
	DefaultStorageDir = "~/.modelscout"

	// DefaultConfigPath is the default path for configuration files
	DefaultConfigPath = "~/.modelscout/config.yaml"

	// DefaultStateFile is the default bbolt state database file name
	DefaultStateFile = "state.db"
)

// Format constants
const (
	// TimeFormatISO8601 is the ISO 8601 time format
	TimeFormatISO8601 = time.RFC3339

	// TimeFormatFilename is the format used in generated artifact names
	TimeFormatFilename = "20060102-150405"
)
