package api

import (
	goerrors "errors"
	"fmt"
)

// Error is a non-2xx answer from the server.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	kind       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s %s returned %d: %s", e.kind, e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap exposes the failure kind (fetch or logout).
func (e *Error) Unwrap() error {
	return e.kind
}

// IsStatus reports whether err carries an HTTP answer with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	if !goerrors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == status
}
