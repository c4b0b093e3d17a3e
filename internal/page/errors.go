package page

import "errors"

var (
	// ErrNotFound is returned when the page file does not exist.
	ErrNotFound = errors.New("page not found")

	// ErrCorrupt is returned when page bytes exist but do not hold a
	// readable document.
	ErrCorrupt = errors.New("page is corrupt")

	// ErrRevisionConflict is returned when a save is based on a stale revision.
	ErrRevisionConflict = errors.New("revision conflict")

	// ErrAlreadyExists is returned when creating a page over an existing file.
	ErrAlreadyExists = errors.New("page already exists")

	// ErrInvalidInput is returned for empty or degenerate titles and hrefs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrWriteFailure is returned when the storage write fails.
	ErrWriteFailure = errors.New("write failure")
)
