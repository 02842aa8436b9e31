package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
		MaxRetries:      retries,
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	})
	assert.Equal(t, 100*time.Millisecond, backoff(1))
	assert.Equal(t, 200*time.Millisecond, backoff(2))
	assert.Equal(t, 400*time.Millisecond, backoff(3))
	assert.Equal(t, time.Second, backoff(10))
}

func TestExponentialBackoffJitterStaysInRange(t *testing.T) {
	backoff := ExponentialBackoff(BackoffConfig{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2, Jitter: true})
	for range 50 {
		d := backoff(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 200*time.Millisecond)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("503")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastError(t *testing.T) {
	boom := errors.New("429")
	calls := 0
	err := Do(context.Background(), fastConfig(2), nil, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDoZeroRetriesCallsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), fastConfig(0), nil, func() error {
		calls++
		return errors.New("500")
	})
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("400")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func(err error) bool { return !errors.Is(err, permanent) }, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoStopError(t *testing.T) {
	cause := errors.New("forbidden")
	calls := 0
	err := Do(context.Background(), fastConfig(5), nil, func() error {
		calls++
		return Stop(cause)
	})
	assert.Same(t, cause, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialInterval = time.Hour
	cfg.MaxInterval = time.Hour

	err := Do(ctx, cfg, nil, func() error {
		cancel()
		return errors.New("503")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
