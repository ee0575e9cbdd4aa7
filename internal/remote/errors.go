package remote

import (
	"fmt"
	"net/http"
)

// TransportError covers failures to get a usable HTTP response: dial and TLS
// errors, timeouts, and non-2xx statuses. StatusCode is zero when no response
// arrived.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("remote returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("remote returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return fmt.Sprintf("remote request failed: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response body that is not a JSON object.
type DecodeError struct {
	Snippet string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed remote response: %v", e.Err)
	}
	return fmt.Sprintf("malformed remote response: %q", e.Snippet)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RejectionError is a business error reported inside a well-formed envelope.
type RejectionError struct {
	Code      string
	Message   string
	RequestID string
}

func (e *RejectionError) Error() string {
	return e.Message
}
