package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrEmptyBody is returned when a source answers 200 with nothing in it.
	ErrEmptyBody = errors.New("empty response body")
	// ErrUnexpectedBody is returned when a body is neither HTML nor JSON.
	ErrUnexpectedBody = errors.New("response body is neither HTML nor JSON")
	// ErrBrowserUnavailable is returned by browser transports when no browser could be started.
	ErrBrowserUnavailable = errors.New("browser unavailable")
	// ErrNoTable is returned when a rendered page never shows a table.
	ErrNoTable = errors.New("no table rendered")
)

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Status     int
	URL        string
	RetryAfter time.Duration
	Preview    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// Retryable reports whether the status usually clears up on its own:
// rate limiting, anti-bot blocks and server errors.
func (e *StatusError) Retryable() bool {
	switch {
	case e.Status == http.StatusForbidden,
		e.Status == http.StatusRequestTimeout,
		e.Status == http.StatusTooEarly,
		e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	default:
		return false
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable classifies an attempt error. Transport errors and per-attempt
// timeouts are retried unless marked permanent or the status says otherwise.
// Cancellation of the caller's context is checked by RetryPolicy.Do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Retryable()
	}
	return true
}
