// Package ratelimit provides per-provider admission control for outbound
// API requests. Every network fetch acquires a permission first, so a
// misbehaving scan can never exceed a provider's request budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
)

// Priority orders permission requests when a bucket is contended.
type Priority string

// Permission priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// PermissionOptions tune one AcquirePermission call.
type PermissionOptions struct {
	Priority Priority
	Timeout  time.Duration // Zero means constants.PermissionTimeout
}

// Limiter grants permission to issue a request against a provider.
// AcquirePermission blocks until the request may proceed, the timeout
// lapses, or ctx is done.
type Limiter interface {
	AcquirePermission(ctx context.Context, provider string, opts PermissionOptions) error
}

// Config is the token-bucket shape for one provider.
type Config struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// DefaultConfig returns the bucket used for providers with no override.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: constants.DefaultRateLimit,
		Burst:             constants.BurstSize,
	}
}

// TokenBucket implements Limiter with one x/time/rate bucket per provider,
// created lazily on first use.
type TokenBucket struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	defaults  Config
	overrides map[string]Config
}

var _ Limiter = (*TokenBucket)(nil)

// NewTokenBucket creates a token-bucket limiter. overrides may be nil.
func NewTokenBucket(defaults Config, overrides map[string]Config) *TokenBucket {
	if defaults.RequestsPerSecond <= 0 {
		defaults.RequestsPerSecond = constants.DefaultRateLimit
	}
	if defaults.Burst <= 0 {
		defaults.Burst = constants.BurstSize
	}
	return &TokenBucket{
		buckets:   make(map[string]*rate.Limiter),
		defaults:  defaults,
		overrides: overrides,
	}
}

// AcquirePermission blocks until the provider's bucket grants a token.
// High and normal priority requests join the bucket's FIFO wait queue; low
// priority requests only take tokens nobody is waiting for.
func (t *TokenBucket) AcquirePermission(ctx context.Context, provider string, opts PermissionOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.PermissionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bucket := t.bucket(provider)

	if opts.Priority == PriorityLow {
		return t.acquireLazily(ctx, bucket, timeout)
	}

	if err := bucket.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return errors.NewTimeoutError("rate-limit permission for "+provider, 0, timeout, timeout)
		}
		return err
	}
	return nil
}

// acquireLazily polls Allow instead of joining the wait queue, so queued
// waiters always win contended tokens.
func (t *TokenBucket) acquireLazily(ctx context.Context, bucket *rate.Limiter, timeout time.Duration) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if bucket.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.NewTimeoutError("rate-limit permission", 0, timeout, timeout)
		case <-ticker.C:
		}
	}
}

func (t *TokenBucket) bucket(provider string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.buckets[provider]; ok {
		return b
	}

	cfg := t.defaults
	if override, ok := t.overrides[provider]; ok {
		if override.RequestsPerSecond > 0 {
			cfg.RequestsPerSecond = override.RequestsPerSecond
		}
		if override.Burst > 0 {
			cfg.Burst = override.Burst
		}
	}

	b := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	t.buckets[provider] = b
	return b
}

// Noop grants every permission immediately. Useful in tests and for
// sources with no request budget.
type Noop struct{}

var _ Limiter = (*Noop)(nil)

// AcquirePermission always succeeds unless ctx is already done.
func (Noop) AcquirePermission(ctx context.Context, _ string, _ PermissionOptions) error {
	return ctx.Err()
}
