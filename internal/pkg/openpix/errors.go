// Package openpix creates and caches dynamic PIX charges through the
// OpenPix API.
package openpix

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the API URL or App ID is missing from the
	// settings; dynamic charges cannot be issued.
	ErrNotConfigured = errors.New("openpix: api not configured")

	// ErrInvalidResponse means the provider answered with a body that
	// could not be decoded.
	ErrInvalidResponse = errors.New("openpix: invalid response body")

	// ErrIncompleteCharge means the provider answered without the BR code
	// needed to present the charge.
	ErrIncompleteCharge = errors.New("openpix: charge response missing brCode")
)

// ConnectionError wraps a transport-level failure reaching the provider.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("openpix: connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatusError reports a non-success HTTP status from the provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openpix: unexpected status %d", e.StatusCode)
}
