package storage

import "errors"

// Common client storage errors
var (
	// ErrDraftNotFound indicates that no unsaved draft exists for the document
	ErrDraftNotFound = errors.New("draft not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrUnsupportedSchema indicates a cache file this client cannot read
	ErrUnsupportedSchema = errors.New("unsupported cache schema")
)
