package policy

import (
	"errors"
	"testing"

	"devherd/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory policy store for gate tests.
type memStore struct {
	policy config.ProjectPolicy
	saves  int
}

func (m *memStore) LoadPolicy() (*config.ProjectPolicy, error) {
	p := m.policy
	p.AllowedCommands = append([]string(nil), m.policy.AllowedCommands...)
	return &p, nil
}

func (m *memStore) SavePolicy(p *config.ProjectPolicy) error {
	m.policy = *p
	m.saves++
	return nil
}

func newTestGate(allowed []string, tools map[string]config.CustomTool) (*Gate, *memStore) {
	store := &memStore{policy: config.ProjectPolicy{
		AllowedCommands: allowed,
		CustomTools:     tools,
	}}
	return NewGate(store), store
}

func TestLeadingToken(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "npm", LeadingToken("npm install"))
	assert.Equal(t, "rm", LeadingToken("  rm -rf /; npm install"))
	assert.Equal(t, "", LeadingToken("   "))
}

func TestResolve_AllowedCommand(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate([]string{"npm", "git"}, nil)

	resolved, err := gate.Resolve("npm test")
	require.NoError(t, err)
	assert.Equal(t, "npm test", resolved)
	assert.True(t, gate.IsAllowed("git status"))
}

func TestResolve_RejectsUnknownCommand(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate([]string{"npm"}, nil)

	_, err := gate.Resolve("rm -rf /")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.Contains(t, err.Error(), `"rm"`)
}

func TestResolve_ExactMatchOnly(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate([]string{"npm"}, nil)

	// No prefix/substring matching: "npmx" must not ride on "npm".
	assert.False(t, gate.IsAllowed("npmx install"))
	// Smuggling after a separator is matched on the leading token only.
	assert.False(t, gate.IsAllowed("rm -rf /; npm install"))
}

func TestResolve_EmptyCommand(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate([]string{"npm"}, nil)
	_, err := gate.Resolve("   ")
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestResolveCustomTool(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate(nil, map[string]config.CustomTool{
		"deploy": {Command: "docker compose -f {{file}} up -d --scale web={{replicas}}"},
	})

	cmd, err := gate.ResolveCustomTool("deploy", map[string]string{
		"file":     "prod.yaml",
		"replicas": "3",
	})
	require.NoError(t, err)
	assert.Equal(t, "docker compose -f prod.yaml up -d --scale web=3", cmd)
}

func TestResolveCustomTool_Unknown(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate(nil, nil)
	_, err := gate.ResolveCustomTool("nope", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestResolveCustomTool_MissingArgs(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate(nil, map[string]config.CustomTool{
		"migrate": {Command: "migrate -d {{db}} -t {{target}}"},
	})

	// Missing keys are an error, never a silent blank.
	_, err := gate.ResolveCustomTool("migrate", map[string]string{"db": "main"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPlaceholder)
	assert.Contains(t, err.Error(), "target")
}

func TestResolveCustomTool_RepeatedPlaceholder(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate(nil, map[string]config.CustomTool{
		"tag": {Command: "git tag {{v}} && git push origin {{v}}"},
	})

	cmd, err := gate.ResolveCustomTool("tag", map[string]string{"v": "v1.2.0"})
	require.NoError(t, err)
	assert.Equal(t, "git tag v1.2.0 && git push origin v1.2.0", cmd)
}

func TestAddAllowedCommand(t *testing.T) {
	t.Parallel()

	gate, store := newTestGate([]string{"npm"}, nil)

	added, err := gate.AddAllowedCommand("docker")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, store.saves)

	// Second add is a no-op that does not duplicate the entry.
	added, err = gate.AddAllowedCommand("docker")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, []string{"npm", "docker"}, store.policy.AllowedCommands)
}

func TestAddAllowedCommand_ReducesToToken(t *testing.T) {
	t.Parallel()

	gate, store := newTestGate(nil, nil)

	added, err := gate.AddAllowedCommand("docker compose up")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"docker"}, store.policy.AllowedCommands)
}

func TestRemoveAllowedCommand(t *testing.T) {
	t.Parallel()

	gate, store := newTestGate([]string{"npm", "git"}, nil)

	removed, err := gate.RemoveAllowedCommand("git")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"npm"}, store.policy.AllowedCommands)

	// Removing an absent entry is reported, not an error.
	removed, err = gate.RemoveAllowedCommand("git")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	gate, _ := newTestGate([]string{"node", "git", "npm"}, map[string]config.CustomTool{
		"deploy": {Command: "docker compose up", Description: "Deploy the stack"},
	})

	allowed, tools, err := gate.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"git", "node", "npm"}, allowed)
	assert.Equal(t, "Deploy the stack", tools["deploy"])
}

func TestErrorsAreDistinguishable(t *testing.T) {
	t.Parallel()

	assert.False(t, errors.Is(ErrPolicyViolation, ErrToolNotFound))
	assert.False(t, errors.Is(ErrMissingPlaceholder, ErrPolicyViolation))
}
