package repository

import "errors"

// Error taxonomy for store and collaborator failures. Callers match
// with errors.Is; handlers map these onto HTTP statuses.
var (
	// ErrValidation marks a missing or malformed required field
	// (identity reference, recipient email).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an update or delete whose target row is gone.
	ErrNotFound = errors.New("not found")

	// ErrRemote wraps transport or storage failures.
	ErrRemote = errors.New("remote operation failed")
)
