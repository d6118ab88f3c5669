package nyx

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks arguments rejected before any network call.
var ErrInvalidRequest = errors.New("invalid request")

// HTTPError is a non-2xx response from the portal.
type HTTPError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Endpoint, e.StatusCode)
}

// IsStatus reports whether err wraps an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}
