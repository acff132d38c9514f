package tasks

import "errors"

var (
	// ErrInvalidIdentifier means the employee id is not a positive integer.
	ErrInvalidIdentifier = errors.New("employee id must be a positive integer")
	// ErrNotFound means no employee has the requested id.
	ErrNotFound = errors.New("employee not found")
	// ErrMutationFailed means the store accepted an update but changed nothing.
	ErrMutationFailed = errors.New("task lists were not updated")
	// ErrStoreUnavailable wraps unexpected store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
