package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy is the single backoff abstraction shared by every transport.
// The delay after the n-th failed attempt is BaseDelay*Multiplier^(n-1) plus a
// random jitter in [0, Jitter).
type RetryPolicy struct {
	MaxTries   int
	BaseDelay  time.Duration
	Multiplier float64
	Jitter     time.Duration

	// Sleep and Rand are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// DefaultRetryPolicy returns the production defaults: 6 tries, 1.5s base, doubling, 400ms jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:   6,
		BaseDelay:  1500 * time.Millisecond,
		Multiplier: 2,
		Jitter:     400 * time.Millisecond,
	}
}

// Delay returns the pause after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1)))
	if p.Jitter > 0 {
		d += time.Duration(p.random() * float64(p.Jitter))
	}
	return d
}

// Do runs op until it succeeds, returns a non-retryable error, the tries run
// out, or ctx is done. op receives the 1-based attempt number.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	tries := p.MaxTries
	if tries < 1 {
		tries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			return err
		}
		if attempt == tries {
			break
		}

		delay := p.Delay(attempt)
		var status *StatusError
		if errors.As(err, &status) && status.RetryAfter > delay {
			delay = status.RetryAfter
		}
		slog.Debug("Attempt failed, retrying", "attempt", attempt, "max_tries", tries, "delay", delay, "error", err)
		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", tries, lastErr)
}

func (p RetryPolicy) random() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext pauses for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
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
