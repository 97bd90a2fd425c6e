package storage

import "errors"

// Common storage errors
var (
	// ErrDocumentNotFound indicates that document was never saved
	ErrDocumentNotFound = errors.New("document not found")

	// ErrRevisionNotFound indicates that the requested revision is not in history
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrRevisionConflict indicates that the stored revision moved since it was read
	ErrRevisionConflict = errors.New("revision conflict")
)
