package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	// ErrStorageUnavailable wraps any backend failure. Durable state is unchanged.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCorruptDocument means a stored document could not be decoded.
	ErrCorruptDocument = errors.New("stored document is corrupt")
)
