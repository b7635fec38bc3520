package remote

import (
	"errors"
	"fmt"
)

// Sentinel errors for remote API operations.
var (
	// ErrJobNotFound indicates the server does not know the job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrTransport indicates the request never produced a structured
	// response: connection failure, timeout, or cancelled context.
	ErrTransport = errors.New("transport failure")

	// ErrRejected indicates the server returned a structured non-success
	// response (or a response body that could not be parsed).
	ErrRejected = errors.New("request rejected")

	// ErrThrottled indicates the server rate limited the request.
	ErrThrottled = errors.New("request throttled")
)

// APIError wraps remote API failures with call context.
type APIError struct {
	// Op is the operation that failed (e.g., "StatusOf", "Rename").
	Op string

	// JobID is the job the call concerned, if any.
	JobID string

	// StatusCode is the HTTP status code, zero when the request never
	// reached the server.
	StatusCode int

	// Message is the server-provided detail, if any.
	Message string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.JobID != "" && e.Message != "":
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.JobID, e.Message, e.Err)
	case e.JobID != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.JobID, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsJobNotFound returns true if the error indicates the server does not
// know the job id.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

// IsTransport returns true if the error indicates a transport-level failure
// with no structured server response.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsRejected returns true if the error indicates a structured non-success
// response from the server.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsThrottled returns true if the error indicates the server rate limited
// the request.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}
