package core

import "errors"

var (
	// ErrBadEncoding is returned when a layer payload is not a PNG data URL.
	ErrBadEncoding = errors.New("layer payload is not a PNG data URL")

	// ErrBadIdentifier is returned when a session or layer id is malformed.
	ErrBadIdentifier = errors.New("malformed identifier")

	// ErrWriteFailed wraps any backend failure while persisting a layer.
	ErrWriteFailed = errors.New("layer write failed")

	// ErrNotFound is returned when a session has no layer with the requested id.
	ErrNotFound = errors.New("not found")
)
