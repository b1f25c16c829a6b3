package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrVendorTransient marks a network/timeout/5xx failure from a vendor or
// MCP server. Processors retry these a bounded number of times before
// surfacing an error chunk; checked with errors.Is().
var ErrVendorTransient = errors.New("transient vendor error")

// RetryConfig configures backoff for transient vendor failures.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for vendor API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// transientPatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// NOTE: String matching because the vendor SDKs do not expose sentinel
// errors for transient failures. Re-evaluate when they do.
var transientPatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// Transient reports whether err should trigger a retry.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrVendorTransient) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range transientPatterns {
		for _, pattern := range group {
			if strings.Contains(errStr, pattern) {
				return true
			}
		}
	}
	return false
}

// withRetry runs attempt with exponential backoff. attempt reports
// whether it emitted any chunk before failing; once output has reached
// the consumer the turn cannot be transparently restarted, so such
// failures surface immediately.
func withRetry(ctx context.Context, logger *slog.Logger, cfg RetryConfig, attempt func(ctx context.Context) (emitted bool, err error)) error {
	var lastErr error
	delay := cfg.InitialInterval
	start := time.Now()

	for try := 0; try <= cfg.MaxRetries; try++ {
		emitted, err := attempt(ctx)
		if err == nil {
			if try > 0 {
				logger.Debug("vendor call succeeded after retry",
					"attempts", try+1,
					"elapsed", time.Since(start))
			}
			return nil
		}
		lastErr = err

		if emitted || !Transient(err) || ctx.Err() != nil {
			return err
		}
		if try == cfg.MaxRetries {
			break
		}

		logger.Debug("retrying vendor call",
			"attempt", try+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.MaxInterval)
		}
	}

	return fmt.Errorf("%w: %d retries exhausted (elapsed %v): %v",
		ErrVendorTransient, cfg.MaxRetries, time.Since(start), lastErr)
}
