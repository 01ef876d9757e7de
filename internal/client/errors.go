package client

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a non-2xx response from the notification service.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

// IsStatus reports whether err (or any wrapped error) is an HTTPError with
// the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// IsAuthError reports whether err is a rejected widget key or subscriber.
func IsAuthError(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}
