package service

import (
	"context"
	"errors"
	"time"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/logger"
)

// withRetry re-runs op while it fails with a persistence error, doubling the wait each time.
// Every other error kind is returned on the first attempt.
func withRetry(ctx context.Context, policy RetryPolicy, op func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := policy.InitialBackoff

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !errors.Is(err, domain.ErrPersistence) || attempt >= attempts {
			return err
		}
		logger.WarnContext(ctx, "Retrying after persistence failure", "attempt", attempt, "backoff", backoff, "error", err)

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
		backoff *= 2
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}
