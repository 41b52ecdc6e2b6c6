package process

import "errors"

// Process lifecycle errors.
var (
	// ErrDuplicateName is returned when starting a server whose name is
	// already running.
	ErrDuplicateName = errors.New("process name already in use")

	// ErrNotFound is returned for operations on an unknown process name.
	ErrNotFound = errors.New("process not found")

	// ErrSpawnFailure is returned when the OS rejected the spawn or the
	// process died during the startup grace window.
	ErrSpawnFailure = errors.New("process failed to start")

	// ErrTimeout is returned by RunWithTimeout when the work did not
	// complete within its bound.
	ErrTimeout = errors.New("operation timed out")
)
