package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$0.00", FormatCurrency(0))
	assert.Equal(t, "$999.50", FormatCurrency(999.5))
	assert.Equal(t, "$1,234,567.89", FormatCurrency(1234567.891))
	assert.Equal(t, "-$12,345.00", FormatCurrency(-12345))
}

func TestFormatPercentAndBps(t *testing.T) {
	assert.Equal(t, "+12.34%", FormatPercent(0.1234))
	assert.Equal(t, "-5.00%", FormatPercent(-0.05))
	assert.Equal(t, "0.00%", FormatPercent(0))
	assert.Equal(t, "10.0 bps", FormatBps(0.001))
}

func TestFormatCompact(t *testing.T) {
	assert.Equal(t, "$10.00M", FormatCompact(10_000_000))
	assert.Equal(t, "$100.00K", FormatCompact(100_000))
	assert.Equal(t, "$2.50B", FormatCompact(2_500_000_000))
	assert.Equal(t, "$12.00", FormatCompact(12))
	assert.Equal(t, "+$5.00", FormatPnL(5))
}

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	busy := errors.New("busy")
	fatal := errors.New("fatal")
	cfg := fastRetry()
	cfg.RetryableErrors = []error{busy}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult_Exhausts(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		calls++
		return 0, errors.New("busy")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := fastRetry()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	err := Retry(ctx, cfg, func() error { return errors.New("busy") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, CalculateBackoff(0, 100*time.Millisecond, time.Second, 2))
	assert.Equal(t, 400*time.Millisecond, CalculateBackoff(2, 100*time.Millisecond, time.Second, 2))
	assert.Equal(t, time.Second, CalculateBackoff(10, 100*time.Millisecond, time.Second, 2))
}
