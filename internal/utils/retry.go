package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted is returned by Retry when the condition never held.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy is a fixed-count, fixed-delay polling policy.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Condition reports whether the polled state is reached. A non-nil error
// aborts the loop immediately.
type Condition func(attempt int) (bool, error)

// Retry polls cond up to p.Attempts times (at least once), sleeping p.Delay
// between attempts. It does not sleep after the final attempt.
func Retry(ctx context.Context, p RetryPolicy, cond Condition) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		ok, err := cond(attempt)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if attempt == attempts {
			break
		}

		if err := WaitFor(ctx, p.Delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, attempts)
}

// Poll retries cond until it holds or timeout elapses, checking every interval.
func Poll(ctx context.Context, timeout, interval time.Duration, cond func() (bool, error)) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	attempts := int(timeout/interval) + 1

	return Retry(ctx, RetryPolicy{Attempts: attempts, Delay: interval}, func(int) (bool, error) {
		return cond()
	})
}
