package engram

import "errors"

var (
	// ErrEmptyText is returned when text input is required but empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrUnknownCI is returned when an operation names a CI that has
	// never stored a memory.
	ErrUnknownCI = errors.New("unknown ci")

	// ErrNoIndex is returned when approximate search is requested before
	// an index has been built for the CI.
	ErrNoIndex = errors.New("no index built for ci")

	// ErrClosed is returned when the memory has been closed.
	ErrClosed = errors.New("memory is closed")
)
