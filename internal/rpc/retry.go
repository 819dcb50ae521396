package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/goran-ethernal/DropIndexor/pkg/config"
)

// transientMarkers are substrings of node and gateway errors that are worth retrying.
var transientMarkers = []string{
	"timeout",
	"deadline exceeded",
	"429",
	"too many requests",
	"rate limit",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"connection pool",
	"no available connection",
	"header not found",
}

// permanentMarkers win over transientMarkers. A reverted call keeps reverting
// no matter how many times it is retried.
var permanentMarkers = []string{
	"execution reverted",
	"invalid opcode",
}

// retryableError reports whether err is transient and the call should be repeated.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// calculateBackoff returns the wait before attempt (1-based). The first attempt
// never waits. Later attempts grow exponentially up to MaxBackoff with +/-25% jitter.
func calculateBackoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	wait := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	wait = math.Min(wait, float64(cfg.MaxBackoff.Duration))

	const jitterFraction = 0.25
	wait += wait * jitterFraction * (2*rand.Float64() - 1)

	return time.Duration(math.Max(wait, 0))
}

// retryWithBackoff runs fn until it succeeds, fails permanently or cfg.MaxAttempts is used up.
// A nil cfg runs fn once.
func retryWithBackoff(ctx context.Context, cfg *config.RetryConfig, method string, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	started := time.Now()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if wait := calculateBackoff(attempt, cfg); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("cancelled while waiting for attempt %d/%d: %w (last error: %w)",
					attempt, cfg.MaxAttempts, ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled before attempt %d: %w", attempt, err)
		}

		if attempt > 1 {
			retried(method)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !retryableError(lastErr) {
			return fmt.Errorf("non-retryable error on attempt %d/%d: %w", attempt, cfg.MaxAttempts, lastErr)
		}
	}

	return fmt.Errorf("all %d attempts failed after %v: %w", cfg.MaxAttempts, time.Since(started), lastErr)
}
