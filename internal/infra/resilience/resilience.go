// Package resilience provides fault-tolerance patterns:
// retry with exponential backoff, circuit breaker, and bulkhead.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds resilience parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
}

// Retryable reports whether a failed attempt is worth repeating.
type Retryable func(err error) bool

// Always retries every error.
func Always(error) bool { return true }

// RetryWithBackoff executes fn with exponential backoff + jitter.
// It respects context cancellation and stops at the first error that
// retryable rejects. A nil retryable retries everything.
func RetryWithBackoff(ctx context.Context, cfg Config, retryable Retryable, fn func() error) error {
	if retryable == nil {
		retryable = Always
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}

		if attempt < cfg.MaxRetries {
			wait := backoff(cfg.InitialBackoff, attempt)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

func backoff(initial time.Duration, attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * initial
	if base < 2 {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(base/2)))
}

// NewCircuitBreaker creates a circuit breaker with sensible defaults.
// Errors for which ignore returns true count as successes, so that
// lookups answering "not found" never trip the breaker.
func NewCircuitBreaker(name string, ignore func(error) bool) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (ignore != nil && ignore(err))
		},
	})
}

// BreakerRejected reports whether err came from an open or saturated breaker.
func BreakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Bulkhead limits concurrent access to a resource.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is available or context is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}

// Guard chains bulkhead, circuit breaker and retry around a single call.
type Guard struct {
	cfg       Config
	bulkhead  *Bulkhead
	breaker   *gobreaker.CircuitBreaker
	retryable Retryable
}

// NewGuard builds a Guard. Errors rejected by retryable are returned on the
// first attempt and do not count against the breaker.
func NewGuard(name string, cfg Config, retryable Retryable) *Guard {
	if retryable == nil {
		retryable = Always
	}
	return &Guard{
		cfg:       cfg,
		bulkhead:  NewBulkhead(cfg.MaxConcurrency),
		breaker:   NewCircuitBreaker(name, func(err error) bool { return !retryable(err) }),
		retryable: retryable,
	}
}

// Do runs fn under the guard.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer g.bulkhead.Release()

	retryable := func(err error) bool {
		return !BreakerRejected(err) && g.retryable(err)
	}

	return RetryWithBackoff(ctx, g.cfg, retryable, func() error {
		_, err := g.breaker.Execute(func() (any, error) {
			return nil, fn(ctx)
		})
		return err
	})
}

// State exposes the breaker state. Store adapters use it for readiness.
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}
