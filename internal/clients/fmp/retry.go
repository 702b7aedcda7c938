package fmp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// errRateLimited marks an HTTP 429 inside the retry loop. Rate-limit waits
// are budgeted separately from generic failures so throttling alone never
// abandons a ticker.
var errRateLimited = errors.New("rate limited")

// ErrNoData is the cause recorded when an endpoint answers successfully but
// with an empty payload.
var ErrNoData = errors.New("no data returned")

// RetryPolicy controls the retryable-operation wrapper shared by every
// fetch call.
type RetryPolicy struct {
	// MaxAttempts is the generic failure budget (network errors, non-2xx,
	// malformed bodies). Default 3.
	MaxAttempts int
	// MaxRateLimitWaits bounds how many 429 backoffs are tolerated per
	// operation, so the loop always terminates. Default 5.
	MaxRateLimitWaits int
	// RateLimitBase is the base for 429 backoff: base * 2^wait.
	// Default 5s, which yields 10s, 20s, 40s, ...
	RateLimitBase time.Duration
	// FailureBase is the base for generic-failure backoff: base * 2^attempt.
	// Default 2s, which yields 2s, 4s, 8s, ...
	FailureBase time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.MaxRateLimitWaits <= 0 {
		p.MaxRateLimitWaits = 5
	}
	if p.RateLimitBase <= 0 {
		p.RateLimitBase = 5 * time.Second
	}
	if p.FailureBase <= 0 {
		p.FailureBase = 2 * time.Second
	}
	return p
}

// doWithRetry runs op until it succeeds or the policy's budgets are spent.
// A 429 consumes a rate-limit wait, not a generic attempt; every other
// failure consumes a generic attempt. Sleeps are context-aware so a
// cancelled run stops backing off immediately.
func doWithRetry(ctx context.Context, p RetryPolicy, op func() error) error {
	p = p.normalized()

	var lastErr error
	attempt := 0
	rlWaits := 0

	for attempt < p.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, errRateLimited) {
			rlWaits++
			if rlWaits > p.MaxRateLimitWaits {
				return fmt.Errorf("rate-limit waits exhausted after %d: %w", p.MaxRateLimitWaits, err)
			}
			if err := sleepCtx(ctx, p.RateLimitBase<<uint(rlWaits)); err != nil {
				return err
			}
			continue
		}

		attempt++
		if attempt < p.MaxAttempts {
			if err := sleepCtx(ctx, p.FailureBase<<uint(attempt-1)); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
