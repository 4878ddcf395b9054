package repository

import "errors"

// Common storage errors
var (
	// ErrNotFound indicates the requested document does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrUnavailable indicates the backing store could not be reached
	ErrUnavailable = errors.New("storage unavailable")
)
