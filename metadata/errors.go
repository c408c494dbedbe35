package metadata

import "errors"

// Common errors shared across the storage integrity layer.
var (
	// ErrNotFound is returned when a referenced path, id, or metadata key
	// does not exist. Always a client error.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a destination name is already occupied.
	// The caller may retry with a different name.
	ErrConflict = errors.New("destination already exists")

	// ErrPathInvalid is returned for malformed paths and for any path whose
	// resolution would escape the storage root. Callers must treat this as a
	// client error and never attempt the filesystem operation.
	ErrPathInvalid = errors.New("path is invalid or escapes the storage root")
)
