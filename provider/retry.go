package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultRetryBase = 500 * time.Millisecond
	defaultRetryMax  = 5
)

// IsRetryable classifies an error as a transient I/O failure. Malformed
// responses and missing signers are deliberate non-retries: the former
// indicates a broken endpoint, the latter a permissions gap.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrSignerMissing) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()
	for _, fragment := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"too many requests",
		"rate limit",
		"temporarily unavailable",
		"EOF",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// WithBackoff runs op with exponential backoff over transient failures.
// The retry budget is bounded; once exhausted the last error surfaces to
// the caller unchanged.
func WithBackoff(ctx context.Context, op func() error) error {
	backoff := retry.WithMaxRetries(defaultRetryMax, retry.NewExponential(defaultRetryBase))

	return retry.Do(ctx, backoff, func(_ context.Context) error {
		if err := op(); err != nil {
			if IsRetryable(err) {
				return retry.RetryableError(err)
			}

			return err
		}

		return nil
	})
}
