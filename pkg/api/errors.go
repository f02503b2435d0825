package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedResponse is returned when a 2xx response is not the
	// expected envelope or lacks a required field.
	ErrMalformedResponse = errors.New("api: malformed response")
)

// fallbackMessage is used when the backend supplied no message at all.
const fallbackMessage = "API request failed"

// Error is a rejection reported by the backend: an HTTP error status or an
// envelope whose result code is not 200. Message is shown to the operator
// verbatim.
type Error struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Temporary reports whether the status indicates that the backend itself
// was unreachable behind a gateway rather than that it refused the request.
func (e *Error) Temporary() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// TransportError means the backend could not be reached or did not answer
// in time.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transient failure to talk to the
// backend, as opposed to an authoritative answer.
func IsTransport(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Temporary()
	}
	return false
}
