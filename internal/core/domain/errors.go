package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrPersistence indicates a DocumentStore read or write failed
	ErrPersistence = errors.New("persistence failure")

	// ErrConcurrencyConflict indicates a guard or queue invariant was violated.
	// It should not occur under correct use.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrCorruptSnapshot indicates a snapshot payload could not be decoded
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrRestoreFailed indicates the restored document could not be written.
	// The history pointer is left unchanged and the caller may retry.
	ErrRestoreFailed = errors.New("restore failed")

	// ErrRestoreInProgress indicates a write was refused because a restore is running
	ErrRestoreInProgress = errors.New("restore in progress")

	// ErrOperationInFlight indicates an undo/redo was rejected because another is running
	ErrOperationInFlight = errors.New("operation already in flight")

	// ErrNothingToUndo indicates the history pointer is already before the first snapshot
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo indicates the history pointer is already at the newest snapshot
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrQueueClosed indicates an operation was submitted after the queue shut down
	ErrQueueClosed = errors.New("operation queue closed")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
