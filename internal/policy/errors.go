package policy

import "errors"

// Policy gate errors.
var (
	// ErrPolicyViolation is returned when a command's leading token is not
	// in the allow-list.
	ErrPolicyViolation = errors.New("command not allowed by policy")

	// ErrToolNotFound is returned when a custom tool name is unknown.
	ErrToolNotFound = errors.New("custom tool not found")

	// ErrMissingPlaceholder is returned when custom-tool args don't cover
	// every {{placeholder}} in the template.
	ErrMissingPlaceholder = errors.New("missing placeholder value")
)
