package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyPatch is returned by PatchTask when the patch carries no fields.
var ErrEmptyPatch = errors.New("patch has no fields")

// TransportError means the request could not be sent or no response arrived.
type TransportError struct {
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is a response outside the 2xx range.
type StatusError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %s: HTTP error! status: %d", e.Op, e.Method, e.URL, e.StatusCode)
}

// DecodeError means the response body did not have the expected shape.
type DecodeError struct {
	Op  string
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode %s: %v", e.Op, e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the task store.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func outcome(err error) string {
	var (
		transportErr *TransportError
		statusErr    *StatusError
		decodeErr    *DecodeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &decodeErr):
		return "decode"
	}
	return "error"
}
