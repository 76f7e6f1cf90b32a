package domain

import "errors"

// Sentinel errors for bookmark operations
var (
	// ErrDurableRead indicates the saved collection could not be read or parsed
	ErrDurableRead = errors.New("failed to read saved movies")

	// ErrDurableWrite indicates the saved collection could not be persisted
	ErrDurableWrite = errors.New("failed to persist saved movies")

	// ErrMissingID indicates a movie record without an integer id
	ErrMissingID = errors.New("movie record has no integer id")
)
