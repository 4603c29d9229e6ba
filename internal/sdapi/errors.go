package sdapi

import (
	"errors"
	"fmt"
)

// HTTPStatusError reports a non-2xx response where the caller needs success.
type HTTPStatusError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %s: %s", e.Op, e.Status, e.Body)
}

// IsHTTPStatus reports whether err carries a non-2xx response status.
func IsHTTPStatus(err error) bool {
	var he *HTTPStatusError
	return errors.As(err, &he)
}

// RetryError is returned by the shared client once the retry budget is spent.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// IsRetryExhausted reports whether err means every retry attempt failed.
func IsRetryExhausted(err error) bool {
	var re *RetryError
	return errors.As(err, &re)
}

// retryableStatusError marks a response whose status is in the retry set.
type retryableStatusError struct {
	code   int
	status string
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("retryable status %s", e.status)
}
