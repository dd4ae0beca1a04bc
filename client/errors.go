package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound matches any StatusError with a 404 status.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized matches StatusErrors with a 401 or 403 status.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedResponse is returned when a response body cannot be decoded
	// into its schema or fails validation.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}

// Is lets callers test the status class with errors.Is.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a non-2xx response.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
