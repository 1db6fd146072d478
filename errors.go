package tsaclient

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check for these through the error chain.
var (
	// ErrConfiguration indicates missing or malformed TSA settings.
	ErrConfiguration = errors.New("invalid timestamp configuration")

	// ErrNotConfigured indicates that the component has no TSA configured at
	// all. It wraps ErrConfiguration.
	ErrNotConfigured = fmt.Errorf("%w: not configured", ErrConfiguration)

	// ErrInvalidAlgorithm indicates an unrecognised hash algorithm name.
	ErrInvalidAlgorithm = errors.New("invalid hash algorithm")

	// ErrUnsupportedAlgorithm indicates a known hash algorithm whose
	// implementation is not linked into the binary.
	ErrUnsupportedAlgorithm = errors.New("hash algorithm not available")

	// ErrTransport indicates a failed HTTP exchange with the TSA.
	ErrTransport = errors.New("TSA transport failure")

	// ErrRequestFailed indicates a failed timestamp request.
	ErrRequestFailed = errors.New("timestamp request failed")

	// ErrNonceMismatch indicates that the TSA did not echo the request nonce.
	ErrNonceMismatch = errors.New("nonce mismatch")

	// ErrImprintMismatch indicates that the TSA stamped a different digest.
	ErrImprintMismatch = errors.New("message imprint mismatch")
)

// ParseError results from an invalid Time-Stamp request or response.
type ParseError string

func (p ParseError) Error() string {
	return string(p)
}

// TransportError is returned for network failures and for any HTTP status
// other than 200.
type TransportError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tsa POST %s: unexpected HTTP status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("tsa POST %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TransportError) Unwrap() error { return e.Err }

// Is reports ErrTransport for every TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// RequestError wraps every failure of Service.RequestTimestamp with the stage
// that failed.
type RequestError struct {
	Op  string // "algorithm", "digest", "source", "request", "send", "response"
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("timestamp request failed: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RequestError) Unwrap() error { return e.Err }

// Is reports ErrRequestFailed for every RequestError.
func (e *RequestError) Is(target error) bool { return target == ErrRequestFailed }
