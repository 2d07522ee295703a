package utils

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// RetryableErrors are retried when matched with errors.Is. Retryable, when
	// set, is consulted as well. With neither set every error is retried.
	RetryableErrors []error
	Retryable       func(error) bool
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (c RetryConfig) shouldRetry(err error) bool {
	if len(c.RetryableErrors) == 0 && c.Retryable == nil {
		return true
	}
	for _, target := range c.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return c.Retryable != nil && c.Retryable(err)
}

// Retry executes a function with exponential backoff retry.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes a function with exponential backoff retry and returns a result.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !cfg.shouldRetry(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(CalculateBackoff(attempt, cfg.InitialDelay, cfg.MaxDelay, cfg.BackoffFactor))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// CalculateBackoff calculates the backoff duration for a given attempt.
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration, factor float64) time.Duration {
	delay := float64(initialDelay) * math.Pow(factor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}
