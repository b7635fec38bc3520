package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrNotFound indicates the job id is not present in the registry.
	ErrNotFound = errors.New("job not in registry")

	// ErrDuplicateID indicates an insert collided with an existing id.
	ErrDuplicateID = errors.New("job id already registered")

	// ErrStatusRegression indicates an update tried to move a terminal
	// job back to a non-terminal status without a manual reset.
	ErrStatusRegression = errors.New("terminal status cannot regress")
)

// IsNotFound returns true if the error indicates a missing job id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateID returns true if the error indicates an id collision.
func IsDuplicateID(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}
