package provider

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// retryBackoff is the fixed delay before the single automatic retry.
// It is a variable so tests can shorten it.
var retryBackoff = 2 * time.Second

// withRetry runs fn and, when it fails with a transient transport error,
// retries exactly once after a fixed backoff. Client errors surface
// immediately.
func withRetry(ctx context.Context, logger *zap.Logger, fn func() (*Response, error)) (*Response, error) {
	resp, err := fn()
	if err == nil || !transient(err) {
		return resp, err
	}

	logger.Warn("transient provider error, retrying once",
		zap.Error(err),
		zap.Duration("backoff", retryBackoff),
	)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryBackoff):
	}

	return fn()
}
