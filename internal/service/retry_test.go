package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rental-reservation-backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestWithRetry(t *testing.T) {
	persistence := domain.NewPersistenceError("op", errors.New("broken pipe"))

	t.Run("StopsOnDomainError", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), RetryPolicy{MaxAttempts: 5}, func() error {
			calls++
			return domain.ErrInsufficientStock
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, 1, calls)
	})

	t.Run("RetriesUntilSuccess", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}, func() error {
			calls++
			if calls < 3 {
				return persistence
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("CancelledWhileWaiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := withRetry(ctx, RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Hour}, func() error {
			calls++
			return persistence
		})
		assert.ErrorIs(t, err, domain.ErrPersistence)
		assert.Equal(t, 1, calls)
	})
}
