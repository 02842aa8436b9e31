// Package retry retries remote calls that failed transiently, using
// exponential backoff with jitter.
//
//	cfg := retry.DefaultBackoffConfig()
//	err := retry.Do(ctx, cfg, isThrottled, func() error {
//		return callRemote()
//	})
//
// With jitter enabled the delay is baseDelay * (0.5 + random(0, 0.5)).
// MaxRetries of zero disables retrying altogether.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// BackoffConfig controls the delays between attempts.
type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	Jitter          bool          `mapstructure:"jitter"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 2 * time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		MaxRetries:      5,
	}
}

// ExponentialBackoff returns the delay before the given retry attempt (1-based).
func ExponentialBackoff(config BackoffConfig) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return config.InitialInterval
		}

		interval := float64(config.InitialInterval) * math.Pow(config.Multiplier, float64(attempt-1))
		if config.MaxInterval > 0 && interval > float64(config.MaxInterval) {
			interval = float64(config.MaxInterval)
		}

		duration := time.Duration(interval)
		if config.Jitter && duration > 1 {
			jitter := time.Duration(rand.Int63n(int64(duration / 2)))
			duration = duration/2 + jitter
		}
		return duration
	}
}

// StopError wraps an error to indicate that retries should stop immediately.
type StopError struct {
	Err error
}

func (s StopError) Error() string { return s.Err.Error() }

func (s StopError) Unwrap() error { return s.Err }

// Stop wraps err so Do returns it without further attempts.
func Stop(err error) error {
	return StopError{Err: err}
}

// Do calls fn until it succeeds, returns an error retryable rejects, or
// MaxRetries retries are spent. A nil retryable retries every error.
// The last error is returned unwrapped so callers can still inspect it.
func Do(ctx context.Context, config BackoffConfig, retryable func(error) bool, fn func() error) error {
	backoff := ExponentialBackoff(config)

	var err error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt)
			log.WithFields(log.Fields{"attempt": attempt, "delay": delay}).WithError(err).Warn("retrying remote call")
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		var stop StopError
		if errors.As(err, &stop) {
			return stop.Err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}
