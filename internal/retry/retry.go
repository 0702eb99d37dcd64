// Package retry runs an operation repeatedly until it succeeds, the
// attempts are exhausted, or the context is canceled.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// Config controls a retry loop. The zero value retries three times with a
// one second pause between attempts.
type Config struct {
	// Attempts is the total number of calls, including the first.
	Attempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// RetryIf decides whether an error is worth retrying. When nil every
	// error is retried.
	RetryIf func(err error) bool

	// OnRetry is called before each pause with the failed attempt number
	// (1-based) and its error. Useful for logging.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it returns nil, the configured attempts run out, or ctx
// is done. The last error is wrapped with the attempt count on exhaustion. A
// non-retryable error is returned as is.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
