package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // multiplied by the attempt number
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Backoff: 10 * time.Millisecond}

// Run calls l.Update until it stops failing with ErrConflict. After
// policy.MaxAttempts conflicts it returns ErrTransientConflict.
func Run(ctx context.Context, l Locker, policy RetryPolicy, keys []LockKey, fn func(tx Tx) error) error {
	return Retry(ctx, policy, func() error {
		return l.Update(ctx, keys, fn)
	})
}

// Retry is Run for writes that serialize themselves, outside Update.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("%w (%d attempts): %v", ErrTransientConflict, attempts, err)
		}

		timer := time.NewTimer(policy.Backoff * time.Duration(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
