package llm

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// RetryableError indicates a transient failure worth retrying (429 or 5xx)
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

// MaxRetries is the default retry budget for retryable collaborator errors
const MaxRetries = 3

// RetryableStatus reports whether an HTTP status is transient
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// StatusError converts a non-2xx HTTP response into an error,
// marking transient statuses retryable.
func StatusError(service string, code int, message string) error {
	if RetryableStatus(code) {
		return &RetryableError{StatusCode: code, Message: fmt.Sprintf("%s: %s", service, message)}
	}
	return fmt.Errorf("%s API error (%d): %s", service, code, message)
}
