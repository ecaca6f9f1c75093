// ABOUTME: Exponential backoff for provider calls that fail with rate limit errors.
// ABOUTME: Other errors are returned immediately.
package generate

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// RetryPolicy configures rate limit backoff.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryPolicy retries up to 5 times starting at 2s and tripling,
// capped at 90s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        5,
		BaseDelay:         2 * time.Second,
		MaxDelay:          90 * time.Second,
		BackoffMultiplier: 3.0,
		Jitter:            true,
	}
}

// Delay returns the wait before retry number attempt (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	delay := time.Duration(d)
	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}
	return delay
}

// IsRateLimit reports whether err looks like an HTTP 429 from a provider SDK.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit")
}

func retryOnRateLimit(ctx context.Context, p RetryPolicy, fn func() error, onRetry func(error, int, time.Duration)) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRateLimit(err) || attempt >= p.MaxRetries {
			return err
		}
		delay := p.Delay(attempt)
		if onRetry != nil {
			onRetry(err, attempt, delay)
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}
