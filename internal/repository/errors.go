package repository

import "errors"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when a compare-and-swap write lost to a
	// concurrent writer; the caller should re-read and retry.
	ErrConflict = errors.New("repository: revision conflict")
)
