package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure classes a bridge session switches on.
// Providers wrap their SDK-specific errors into one of these (or into a
// [ServiceError]) so the session never inspects provider internals.
var (
	// ErrAuthentication indicates the service rejected the credentials
	// (or none were configured). Never retriable.
	ErrAuthentication = errors.New("llm: authentication failed")

	// ErrRateLimit indicates the service throttled the request. Retriable.
	ErrRateLimit = errors.New("llm: rate limited")

	// ErrTimeout indicates the request exceeded the configured deadline.
	ErrTimeout = errors.New("llm: request timed out")

	// ErrProtocol indicates the model response claimed tool calls that could
	// not be parsed. Raised to the session, never silently dropped.
	ErrProtocol = errors.New("llm: malformed response")
)

// ServiceError is a non-2xx response that does not map to a more specific
// sentinel. 5xx errors are retriable, 4xx errors are not.
type ServiceError struct {
	// StatusCode is the HTTP status returned by the service, 0 if unknown.
	StatusCode int

	// Message is the service-supplied error description.
	Message string
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("llm: service error: %s", e.Message)
	}
	return fmt.Sprintf("llm: service error (status %d): %s", e.StatusCode, e.Message)
}

// Retriable reports whether err is worth retrying with backoff: rate limits,
// timeouts, and server-side (5xx) failures. Authentication and other client
// errors are permanent.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// MapStatus converts an HTTP status code and message into the taxonomy error
// the session expects. Providers call this after extracting the status from
// their SDK's error type.
func MapStatus(status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthentication, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrTimeout, message)
	default:
		return &ServiceError{StatusCode: status, Message: message}
	}
}
