package rpc

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func fastRetry(attempts int) *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    common.NewDuration(time.Millisecond),
		MaxBackoff:        common.NewDuration(5 * time.Millisecond),
		BackoffMultiplier: 2,
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil", err: nil, retryable: false},
		{name: "net timeout", err: timeoutError{}, retryable: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, retryable: true},
		{name: "connection reset wrapped", err: fmt.Errorf("dial: %w", syscall.ECONNRESET), retryable: true},
		{name: "deadline", err: context.DeadlineExceeded, retryable: true},
		{name: "rate limited", err: errors.New("429 Too Many Requests"), retryable: true},
		{name: "gateway", err: errors.New("502 Bad Gateway"), retryable: true},
		{name: "header not found", err: errors.New("header not found"), retryable: true},
		{name: "reverted call", err: errors.New("execution reverted"), retryable: false},
		{name: "reverted call behind a timeout message", err: errors.New("execution reverted: timeout"), retryable: false},
		{name: "invalid params", err: errors.New("invalid argument 0: hex string has length 3"), retryable: false},
		{name: "cancelled", err: context.Canceled, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.retryable, retryableError(tt.err))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &config.RetryConfig{
		InitialBackoff:    common.NewDuration(time.Second),
		MaxBackoff:        common.NewDuration(5 * time.Second),
		BackoffMultiplier: 2,
	}

	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{attempt: 1, base: 0},
		{attempt: 2, base: time.Second},
		{attempt: 3, base: 2 * time.Second},
		{attempt: 4, base: 4 * time.Second},
		{attempt: 10, base: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			for range 20 {
				wait := calculateBackoff(tt.attempt, cfg)
				require.GreaterOrEqual(t, wait, tt.base*3/4)
				require.LessOrEqual(t, wait, tt.base*5/4)
			}
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *config.RetryConfig
		failures  []error
		wantCalls int
		wantErr   string
	}{
		{
			name:      "first attempt succeeds",
			cfg:       fastRetry(3),
			wantCalls: 1,
		},
		{
			name:      "transient failures then success",
			cfg:       fastRetry(5),
			failures:  []error{timeoutError{}, errors.New("503 service unavailable")},
			wantCalls: 3,
		},
		{
			name:      "revert is not retried",
			cfg:       fastRetry(5),
			failures:  []error{errors.New("execution reverted")},
			wantCalls: 1,
			wantErr:   "non-retryable error on attempt 1/5",
		},
		{
			name:      "attempts exhausted",
			cfg:       fastRetry(3),
			failures:  []error{timeoutError{}, timeoutError{}, timeoutError{}},
			wantCalls: 3,
			wantErr:   "all 3 attempts failed",
		},
		{
			name:      "nil config runs once",
			cfg:       nil,
			failures:  []error{timeoutError{}},
			wantCalls: 1,
			wantErr:   "i/o timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), tt.cfg, "eth_call", func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			require.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
			require.ErrorIs(t, err, tt.failures[len(tt.failures)-1])
		})
	}
}

func TestRetryWithBackoff_Cancelled(t *testing.T) {
	cfg := &config.RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    common.NewDuration(time.Hour),
		MaxBackoff:        common.NewDuration(time.Hour),
		BackoffMultiplier: 1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- retryWithBackoff(ctx, cfg, "eth_getLogs", func() error {
			calls++
			return timeoutError{}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, err, timeoutError{})
		require.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
}
