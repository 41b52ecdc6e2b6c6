// Package policy implements the command allow-list gate and custom tool
// resolution. Every free-text command an agent wants to run passes through
// the Gate before it reaches the OS.
package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"devherd/internal/config"
	"devherd/internal/logging"
)

// placeholderRe matches {{key}} tokens in custom tool templates.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\s*\}\}`)

// Store is the persistence boundary the gate consumes. Implemented by
// config.Store.
type Store interface {
	LoadPolicy() (*config.ProjectPolicy, error)
	SavePolicy(*config.ProjectPolicy) error
}

// Gate decides whether a free-text command may execute, and resolves
// custom-tool invocations into concrete command strings.
type Gate struct {
	store Store
}

// NewGate creates a gate backed by the given policy store.
func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// LeadingToken extracts the first whitespace-delimited token of a command
// string: the executable name the policy is matched against.
func LeadingToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// IsAllowed reports whether the command's leading token exactly matches an
// allow-list entry. No substring or pattern matching: "npmx" does not pass
// because "npm" is allowed, and "rm -rf /; npm install" is matched on "rm",
// not on anything after the separator.
func (g *Gate) IsAllowed(command string) bool {
	_, err := g.Resolve(command)
	return err == nil
}

// Resolve approves a command for execution, returning it unchanged, or
// fails with ErrPolicyViolation naming the rejected executable.
func (g *Gate) Resolve(command string) (string, error) {
	token := LeadingToken(command)
	if token == "" {
		return "", fmt.Errorf("%w: empty command", ErrPolicyViolation)
	}

	policy, err := g.store.LoadPolicy()
	if err != nil {
		return "", fmt.Errorf("failed to load policy: %w", err)
	}

	for _, allowed := range policy.AllowedCommands {
		if token == allowed {
			logging.PolicyDebug("Approved command %q (matched %q)", command, allowed)
			return command, nil
		}
	}

	logging.Policy("Rejected command %q: %q is not allowed", command, token)
	return "", fmt.Errorf("%w: command %q is not in the allowed list", ErrPolicyViolation, token)
}

// ResolveCustomTool looks up a custom tool and substitutes its {{key}}
// placeholders from args, producing a concrete command string. Custom tools
// bypass the allow-list: they were vetted when they were defined.
func (g *Gate) ResolveCustomTool(name string, args map[string]string) (string, error) {
	policy, err := g.store.LoadPolicy()
	if err != nil {
		return "", fmt.Errorf("failed to load policy: %w", err)
	}

	tool, ok := policy.CustomTools[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	var missing []string
	command := placeholderRe.ReplaceAllStringFunc(tool.Command, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		value, ok := args[key]
		if !ok {
			missing = append(missing, key)
			return match
		}
		return value
	})

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: custom tool %q requires %s",
			ErrMissingPlaceholder, name, strings.Join(missing, ", "))
	}

	logging.Policy("Resolved custom tool %q -> %q", name, command)
	return command, nil
}

// AddAllowedCommand adds an entry to the allow-list and persists the
// policy. Idempotent: adding an existing entry reports added=false and
// changes nothing. The entry is reduced to its leading token so the list
// only ever holds bare executable names.
func (g *Gate) AddAllowedCommand(command string) (bool, error) {
	token := LeadingToken(command)
	if token == "" {
		return false, fmt.Errorf("%w: empty command", ErrPolicyViolation)
	}

	policy, err := g.store.LoadPolicy()
	if err != nil {
		return false, fmt.Errorf("failed to load policy: %w", err)
	}

	for _, existing := range policy.AllowedCommands {
		if existing == token {
			return false, nil
		}
	}

	policy.AllowedCommands = append(policy.AllowedCommands, token)
	if err := g.store.SavePolicy(policy); err != nil {
		return false, fmt.Errorf("failed to save policy: %w", err)
	}

	logging.Policy("Added %q to allowed commands", token)
	return true, nil
}

// RemoveAllowedCommand removes an entry from the allow-list and persists
// the policy. Removing an absent entry reports removed=false and is not an
// error.
func (g *Gate) RemoveAllowedCommand(command string) (bool, error) {
	token := LeadingToken(command)
	if token == "" {
		return false, fmt.Errorf("%w: empty command", ErrPolicyViolation)
	}

	policy, err := g.store.LoadPolicy()
	if err != nil {
		return false, fmt.Errorf("failed to load policy: %w", err)
	}

	kept := policy.AllowedCommands[:0]
	removed := false
	for _, existing := range policy.AllowedCommands {
		if existing == token {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return false, nil
	}

	policy.AllowedCommands = kept
	if err := g.store.SavePolicy(policy); err != nil {
		return false, fmt.Errorf("failed to save policy: %w", err)
	}

	logging.Policy("Removed %q from allowed commands", token)
	return true, nil
}

// Snapshot returns the current allow-list (sorted) and custom tool names.
func (g *Gate) Snapshot() (allowed []string, tools map[string]string, err error) {
	policy, err := g.store.LoadPolicy()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load policy: %w", err)
	}

	allowed = append([]string(nil), policy.AllowedCommands...)
	sort.Strings(allowed)

	tools = make(map[string]string, len(policy.CustomTools))
	for name, tool := range policy.CustomTools {
		tools[name] = tool.Description
	}
	return allowed, tools, nil
}
