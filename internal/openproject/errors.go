package openproject

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrAuth        = errors.New("openproject: authentication failed")
	ErrForbidden   = errors.New("openproject: access forbidden")
	ErrNotFound    = errors.New("openproject: resource not found")
	ErrConflict    = errors.New("openproject: resource was modified concurrently")
	ErrValidation  = errors.New("openproject: request rejected by validation")
	ErrUnavailable = errors.New("openproject: host unreachable or server error")
	ErrBadResponse = errors.New("openproject: invalid response format or malformed data")
	ErrTimeout     = errors.New("openproject: request timed out")
)

// APIError is a rich error type that wraps the sentinel errors with context.
type APIError struct {
	Sentinel error
	Op       string
	Status   int
	Message  string // server-provided message, if any
	Err      error  // nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("openproject: %s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}

// sentinelForStatus maps an HTTP status code to the sentinel the UI
// branches on.
func sentinelForStatus(status int) error {
	switch {
	case status == 401:
		return ErrAuth
	case status == 403:
		return ErrForbidden
	case status == 404:
		return ErrNotFound
	case status == 409:
		return ErrConflict
	case status == 422:
		return ErrValidation
	case status >= 500:
		return ErrUnavailable
	default:
		return ErrBadResponse
	}
}

// wrapStatus builds an *APIError for a non-2xx response. message carries
// the server's own error text when the body could be parsed.
func wrapStatus(op string, status int, message string) error {
	return &APIError{
		Sentinel: sentinelForStatus(status),
		Op:       op,
		Status:   status,
		Message:  message,
	}
}

// wrapTransport builds an *APIError for a failure below the HTTP layer.
func wrapTransport(op string, err error) error {
	sentinel := ErrUnavailable
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		sentinel = ErrTimeout
	case errors.Is(err, context.DeadlineExceeded):
		sentinel = ErrTimeout
	}
	return &APIError{
		Sentinel: sentinel,
		Op:       op,
		Err:      err,
	}
}

// UserMessage renders an error in a form suitable for the status line.
// Sentinels get short, actionable text; anything else falls back to Error().
func UserMessage(err error) string {
	var apiErr *APIError
	hasDetail := errors.As(err, &apiErr) && apiErr.Message != ""
	switch {
	case errors.Is(err, ErrAuth):
		return "Authentication failed. Please check your API key."
	case errors.Is(err, ErrConflict):
		return "Modified by someone else. Reload and try again."
	case errors.Is(err, ErrValidation) && hasDetail:
		return apiErr.Message
	case errors.Is(err, ErrTimeout):
		return "Request timed out."
	case errors.Is(err, ErrUnavailable):
		return "OpenProject is unreachable."
	case errors.Is(err, ErrNotFound):
		return "Not found. It may have been deleted."
	case err != nil:
		return err.Error()
	}
	return ""
}
