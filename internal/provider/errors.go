package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential indicates the model's api-key resolved to an
	// empty string, typically an unset environment variable.
	ErrMissingCredential = errors.New("missing API key")

	// ErrUnsupportedProvider indicates an unknown provider kind in the
	// model configuration.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// TransportError is a network or provider-side failure. Status holds the
// HTTP status code when one was received, zero otherwise.
type TransportError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed (HTTP %d): %s", e.Provider, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// transient reports whether an error is worth the single automatic
// retry: rate limiting, server-side failures, and connection-level
// errors qualify; 4xx client errors and cancellation do not.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Status == 0 {
			// No HTTP status means the connection itself failed.
			return true
		}
		return transportErr.Status == 429 || transportErr.Status >= 500
	}
	return false
}
