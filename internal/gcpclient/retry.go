package gcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrRateLimited is returned when all retries are exhausted on a 429 response.
var ErrRateLimited = fmt.Errorf("the system is experiencing high demand. Please try again in a few seconds")

// retryConfig holds the backoff schedule for Vertex AI/Anthropic 429
// mitigation. ceiling defaults to the teacher's original 4s cap but is
// tightened by ConfigureRetryCeiling once the configured LLM call timeout is
// known, so retries on a short LLM_TIMEOUT don't eat the whole deadline.
var retryConfig = struct {
	initial time.Duration
	ceiling time.Duration
	tries   uint
}{
	initial: 500 * time.Millisecond,
	ceiling: 4 * time.Second,
	tries:   4,
}

// ConfigureRetryCeiling caps the exponential backoff interval at a quarter of
// llmTimeout, with a 500ms floor. Call once during startup after the LLM
// client's timeout is known; a non-positive llmTimeout leaves the default
// ceiling untouched.
func ConfigureRetryCeiling(llmTimeout time.Duration) {
	if llmTimeout <= 0 {
		return
	}
	ceiling := llmTimeout / 4
	if ceiling < 500*time.Millisecond {
		ceiling = 500 * time.Millisecond
	}
	retryConfig.ceiling = ceiling
}

// isRetryableError checks if an error is a Vertex AI 429 rate-limit error.
// Works for both SDK errors (which embed status codes in the message) and REST responses.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// isRetryableStatus checks if an HTTP status code warrants a retry.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// withRetry executes fn up to retryConfig.tries times, retrying only on
// 429/rate-limit errors, with exponential backoff capped at retryConfig.ceiling.
func withRetry[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryConfig.initial
	b.MaxInterval = retryConfig.ceiling
	b.Multiplier = 2

	attempt := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, fnErr := fn()
		if fnErr == nil {
			return v, nil
		}
		if !isRetryableError(fnErr) {
			return v, backoff.Permanent(fnErr)
		}
		slog.Warn("vertex AI rate limited, retrying",
			"operation", operation,
			"attempt", attempt,
			"error", fnErr.Error(),
		)
		return v, fnErr
	}, backoff.WithBackOff(b), backoff.WithMaxTries(retryConfig.tries))

	if err != nil {
		if isRetryableError(err) {
			slog.Error("vertex AI retries exhausted", "operation", operation, "attempts", attempt)
			var zero T
			return zero, ErrRateLimited
		}
		return result, err
	}
	if attempt > 1 {
		slog.Info("vertex AI retry succeeded", "operation", operation, "attempt", attempt)
	}
	return result, nil
}
