package sequence

import "errors"

// Execution errors.
var (
	// ErrNonZeroExit is returned when a command completed but failed.
	ErrNonZeroExit = errors.New("command exited non-zero")

	// ErrTimeout is returned when a command exceeded its per-command bound.
	ErrTimeout = errors.New("command timed out")
)
