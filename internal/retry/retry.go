// Package retry holds the retry policy defaults and backoff strategies.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// Policy defaults.
const (
	DefaultMaxAttempts       = 3
	DefaultAttemptTimeout    = 30 * time.Minute
	DefaultBackoffDelay      = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultMaxBackoff        = 10 * time.Minute
)

// DefaultPolicy returns the default retry configuration: three attempts of
// thirty minutes each, retried immediately.
func DefaultPolicy() types.RetryPolicy {
	return types.RetryPolicy{
		MaxAttempts:       DefaultMaxAttempts,
		AttemptTimeout:    DefaultAttemptTimeout,
		Backoff:           types.BackoffNone,
		BackoffDelay:      DefaultBackoffDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MaxBackoff:        DefaultMaxBackoff,
	}
}

// Normalize fills zero fields of p from DefaultPolicy.
func Normalize(p types.RetryPolicy) types.RetryPolicy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	if p.Backoff == "" {
		p.Backoff = d.Backoff
	}
	if p.BackoffDelay <= 0 {
		p.BackoffDelay = d.BackoffDelay
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = d.BackoffMultiplier
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	return p
}

// ForJob applies per-job overrides on top of the fleet policy.
func ForJob(p types.RetryPolicy, job types.Job) types.RetryPolicy {
	if job.MaxAttempts > 0 {
		p.MaxAttempts = job.MaxAttempts
	}
	if job.AttemptTimeout > 0 {
		p.AttemptTimeout = job.AttemptTimeout
	}
	return Normalize(p)
}

// ValidStrategy reports whether s names a supported backoff strategy.
func ValidStrategy(s types.BackoffStrategy) bool {
	switch s {
	case types.BackoffNone, types.BackoffFixed, types.BackoffExponential:
		return true
	}
	return false
}

// NewBackOff builds a fresh backoff sequence for one job. Exponential
// backoff is deterministic: no jitter is applied.
func NewBackOff(p types.RetryPolicy) (backoff.BackOff, error) {
	p = Normalize(p)
	switch p.Backoff {
	case types.BackoffNone:
		return &backoff.ZeroBackOff{}, nil
	case types.BackoffFixed:
		return backoff.NewConstantBackOff(p.BackoffDelay), nil
	case types.BackoffExponential:
		b := &backoff.ExponentialBackOff{
			InitialInterval:     p.BackoffDelay,
			RandomizationFactor: 0,
			Multiplier:          p.BackoffMultiplier,
			MaxInterval:         p.MaxBackoff,
		}
		b.Reset()
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q", p.Backoff)
	}
}

// Sleep waits for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
