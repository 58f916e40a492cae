package domain

import "errors"

var (
	// ErrNotReady means no documents have been ingested into the
	// configured backends yet.
	ErrNotReady = errors.New("no documents have been ingested yet")

	// ErrCancelled marks a job stopped at the user's request. It is an
	// outcome, not a failure.
	ErrCancelled = errors.New("processing cancelled by user")

	// ErrTimeout marks a phase that exceeded its configured budget.
	ErrTimeout = errors.New("processing timed out")

	// ErrConfig marks an invalid or contradictory configuration.
	ErrConfig = errors.New("invalid configuration")

	// ErrBackendIO marks a failed index or database operation.
	ErrBackendIO = errors.New("backend store operation failed")

	// ErrModelIO marks a failed embedding or generation call.
	ErrModelIO = errors.New("model request failed")

	// ErrInvalidInput marks a malformed request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrJobNotFound is returned for unknown job identifiers.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnsupportedFormat is returned for documents the converter
	// cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
