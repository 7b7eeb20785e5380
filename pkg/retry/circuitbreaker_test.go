package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("persistence")
	cfg.MaxFailures = 2
	cfg.ResetTimeout = time.Minute
	cb := NewCircuitBreaker(cfg)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	boom := stderrors.New("db down")
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), boom)
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("persistence")
	cfg.MaxFailures = 1
	cb := NewCircuitBreaker(cfg)

	now := time.Now()
	cb.now = func() time.Time { return now }

	boom := stderrors.New("db down")
	_ = cb.Execute(context.Background(), func(context.Context) error { return boom })
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(cfg.ResetTimeout + time.Second)
	_ = cb.Execute(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_TimeoutBoundsContext(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("slow")
	cfg.Timeout = 10 * time.Millisecond
	cb := NewCircuitBreaker(cfg)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, cb.GetCounts().TotalFailures)
}
