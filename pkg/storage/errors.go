// Package storage defines the embedded key-value store contract for
// kvstash.
package storage

import "errors"

// Common errors
var (
	// ErrClosed is returned by operations on a store after Close.
	ErrClosed = errors.New("store closed")

	// ErrMalformedEntry reports a payload that exists but cannot be
	// decoded. It is wrapped with engine context; test with errors.Is.
	ErrMalformedEntry = errors.New("malformed entry payload")

	// ErrNilValue is returned when a nil value or destination is
	// passed where one is required.
	ErrNilValue = errors.New("nil value")
)
