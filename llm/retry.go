package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("provider returned empty content")

// StatusError is a non-200 answer from a REST provider
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	}
	return true
}

// withRetry calls fn up to maxRetries times with doubling backoff.
// Client errors (400, 401, 403, 404) are returned immediately.
func withRetry(ctx context.Context, backoff time.Duration, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}
