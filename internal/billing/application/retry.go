package application

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxAttempts is the default bound for document downloads.
const DefaultMaxAttempts = 5

// RetryPolicy runs an action up to MaxAttempts times and yields Fallback
// once every attempt has failed.
type RetryPolicy[T any] struct {
	MaxAttempts int
	Delay       time.Duration
	Fallback    T
}

// Run executes action until it succeeds or the attempts are exhausted.
// observe, when set, is called after every attempt with its outcome.
// On exhaustion Run returns Fallback and the last error.
func (p RetryPolicy[T]) Run(ctx context.Context, action func(ctx context.Context, attempt int) (T, error), observe func(attempt int, err error)) (T, error) {
	if action == nil {
		return p.Fallback, errors.New("retry policy: nil action")
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := action(ctx, attempt)
		if observe != nil {
			observe(attempt, err)
		}
		if err == nil {
			return value, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return p.Fallback, errors.Join(lastErr, ctx.Err())
			case <-timer.C:
			}
		}
	}
	return p.Fallback, lastErr
}
