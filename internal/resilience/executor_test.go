package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_SingleAttempt(t *testing.T) {
	exec := NewExecutor(DefaultConfig())

	calls := 0
	errRemote := errors.New("remote down")
	err := exec.Execute(context.Background(), "onebill", func(context.Context) error {
		calls++
		return errRemote
	}, nil)

	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, 1, calls)
}

func TestExecute_OpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	errRemote := errors.New("remote down")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "validation", func(context.Context) error { return errRemote }, nil)
		require.ErrorIs(t, err, errRemote)
	}

	err := exec.Execute(context.Background(), "validation", func(context.Context) error {
		t.Fatal("circuit should be open")
		return nil
	}, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, IsCircuitOpen(err))

	// other operations have their own breaker
	assert.NoError(t, exec.Execute(context.Background(), "extraction", func(context.Context) error { return nil }, nil))
}

func TestExecute_ClassifierSkipsFailures(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: true, BreakerMinRequests: 1, BreakerFailureRatio: 0.1})

	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error { return context.Canceled }, SkipCanceled)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.NoError(t, exec.Execute(context.Background(), "op", func(context.Context) error { return nil }, SkipCanceled))
}

func TestExecute_NilExecutorAndCanceledContext(t *testing.T) {
	var exec *Executor
	called := false
	require.NoError(t, exec.Execute(context.Background(), "op", func(context.Context) error { called = true; return nil }, nil))
	assert.True(t, called)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewExecutor(DefaultConfig()).Execute(ctx, "op", func(context.Context) error {
		t.Fatal("must not run")
		return nil
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
