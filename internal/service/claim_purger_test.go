package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestClaimPurger_PurgeOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("Deletes claims expired by now", func(t *testing.T) {
		claims := new(MockIdempotencyRepository)
		purger := NewClaimPurger(claims, time.Minute, zerolog.Nop())
		purger.now = func() time.Time { return now }

		claims.On("PurgeExpired", mock.Anything, now).Return(int64(4), nil).Once()

		assert.Equal(t, int64(4), purger.PurgeOnce(ctx))
		claims.AssertExpectations(t)
	})

	t.Run("Failure reports nothing purged", func(t *testing.T) {
		claims := new(MockIdempotencyRepository)
		purger := NewClaimPurger(claims, time.Minute, zerolog.Nop())
		purger.now = func() time.Time { return now }

		claims.On("PurgeExpired", mock.Anything, now).Return(int64(0), errors.New("connection refused")).Once()

		assert.Zero(t, purger.PurgeOnce(ctx))
		claims.AssertExpectations(t)
	})
}

func TestClaimPurger_RunsUntilClosed(t *testing.T) {
	claims := new(MockIdempotencyRepository)
	purger := NewClaimPurger(claims, 10*time.Millisecond, zerolog.Nop())

	var calls atomic.Int32
	claims.On("PurgeExpired", mock.Anything, mock.AnythingOfType("time.Time")).
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return(int64(0), errors.New("transient"))

	purger.Start(context.Background())
	purger.Start(context.Background())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"purge keeps running after a failure")

	purger.Close()
	stopped := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())

	purger.Close()
}

func TestClaimPurger_StopsWithContext(t *testing.T) {
	claims := new(MockIdempotencyRepository)
	purger := NewClaimPurger(claims, time.Hour, zerolog.Nop())

	first := make(chan struct{})
	claims.On("PurgeExpired", mock.Anything, mock.AnythingOfType("time.Time")).
		Run(func(mock.Arguments) { close(first) }).
		Return(int64(1), nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	purger.Start(ctx)

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("purge did not run on start")
	}

	cancel()
	purger.Close()
	claims.AssertExpectations(t)
}

func TestClaimPurger_Disabled(t *testing.T) {
	claims := new(MockIdempotencyRepository)
	purger := NewClaimPurger(claims, 0, zerolog.Nop())

	purger.Start(context.Background())
	purger.Close()

	claims.AssertNotCalled(t, "PurgeExpired", mock.Anything, mock.Anything)
}
