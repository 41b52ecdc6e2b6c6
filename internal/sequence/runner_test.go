//go:build !windows

package sequence

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"devherd/internal/config"
	"devherd/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	policy config.ProjectPolicy
}

func (s *stubStore) LoadPolicy() (*config.ProjectPolicy, error) {
	p := s.policy
	p.AllowedCommands = append([]string(nil), s.policy.AllowedCommands...)
	return &p, nil
}

func (s *stubStore) SavePolicy(p *config.ProjectPolicy) error {
	s.policy = *p
	return nil
}

func newTestRunner(t *testing.T, allowed ...string) *Runner {
	t.Helper()
	gate := policy.NewGate(&stubStore{policy: config.ProjectPolicy{AllowedCommands: allowed}})
	dir := t.TempDir()
	resolve := func(d string) string {
		if d == "" {
			return dir
		}
		return d
	}
	return NewRunner(gate, resolve, 5*time.Second, 50000)
}

// countingSpawner wraps execCommandContext with a spawn counter.
func countSpawns(t *testing.T) *int {
	t.Helper()
	count := 0
	orig := execCommandContext
	execCommandContext = func(ctx context.Context, command string) *exec.Cmd {
		count++
		return orig(ctx, command)
	}
	t.Cleanup(func() { execCommandContext = orig })
	return &count
}

func TestRunCommand_Success(t *testing.T) {
	r := newTestRunner(t, "echo")

	result, err := r.RunCommand(context.Background(), "echo hello", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.False(t, result.Failed())
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))
}

func TestRunCommand_PolicyRejectionSpawnsNothing(t *testing.T) {
	r := newTestRunner(t, "echo")
	spawns := countSpawns(t)

	result, err := r.RunCommand(context.Background(), "rm -rf /", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, policy.ErrPolicyViolation)
	assert.Equal(t, 0, *spawns)
	assert.Equal(t, -1, result.ExitCode)
	assert.True(t, result.Failed())
}

func TestRunCommand_NonZeroExit(t *testing.T) {
	r := newTestRunner(t, "sh")

	result, err := r.RunCommand(context.Background(), "sh -c 'echo partial; exit 7'", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonZeroExit)
	assert.Equal(t, 7, result.ExitCode)
	// Partial output is captured, not discarded.
	assert.Equal(t, "partial\n", result.Stdout)
}

func TestRunCommand_Timeout(t *testing.T) {
	r := newTestRunner(t, "sleep")

	result, err := r.RunCommand(context.Background(), "sleep 5", Options{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "50ms")
	assert.True(t, result.Failed())
}

func TestRunCommand_Stderr(t *testing.T) {
	r := newTestRunner(t, "sh")

	result, err := r.RunCommand(context.Background(), "sh -c 'echo oops >&2'", Options{})
	require.NoError(t, err)
	assert.Equal(t, "oops\n", result.Stderr)
}

func TestRunCommand_WorkingDirectoryResolved(t *testing.T) {
	r := newTestRunner(t, "pwd")

	result, err := r.RunCommand(context.Background(), "pwd", Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Stdout)
}

func TestRunCommand_EnvInjection(t *testing.T) {
	r := newTestRunner(t, "sh")

	result, err := r.RunCommand(context.Background(), "sh -c 'echo $DEVHERD_TEST_VAR'", Options{
		Env: map[string]string{"DEVHERD_TEST_VAR": "wired"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wired\n", result.Stdout)
}

func TestRunCommand_OutputTruncated(t *testing.T) {
	gate := policy.NewGate(&stubStore{policy: config.ProjectPolicy{AllowedCommands: []string{"sh"}}})
	r := NewRunner(gate, nil, 5*time.Second, 64)

	result, err := r.RunCommand(context.Background(), "sh -c 'yes x | head -n 100'", Options{})
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "...[truncated]")
	assert.LessOrEqual(t, len(result.Stdout), 64+len("\n...[truncated]"))
}

func TestRunResolved_BypassesGate(t *testing.T) {
	// No allowed commands at all; the resolved path still executes.
	r := newTestRunner(t)

	result, err := r.RunResolved(context.Background(), "echo custom-tool", Options{})
	require.NoError(t, err)
	assert.Equal(t, "custom-tool\n", result.Stdout)
}

func TestRunSequence_StopOnError(t *testing.T) {
	r := newTestRunner(t, "echo", "false")

	seq := r.RunSequence(context.Background(), []string{"echo a", "false", "echo b"}, SequenceOptions{
		StopOnError: true,
	})

	// Exactly two commands ran; the third never started.
	require.Len(t, seq.Results, 2)
	assert.True(t, seq.Failed)
	assert.True(t, seq.Halted)
	assert.Equal(t, "a\n", seq.Results[0].Stdout)
	assert.True(t, seq.Results[1].Failed())
}

func TestRunSequence_ContinueOnError(t *testing.T) {
	r := newTestRunner(t, "echo", "false")

	seq := r.RunSequence(context.Background(), []string{"echo a", "false", "echo b"}, SequenceOptions{
		StopOnError: false,
	})

	require.Len(t, seq.Results, 3)
	assert.True(t, seq.Failed)
	assert.False(t, seq.Halted)
	assert.Equal(t, "b\n", seq.Results[2].Stdout)
}

func TestRunSequence_AllSucceed(t *testing.T) {
	r := newTestRunner(t, "echo")

	seq := r.RunSequence(context.Background(), []string{"echo one", "echo two"}, SequenceOptions{
		StopOnError: true,
	})

	require.Len(t, seq.Results, 2)
	assert.False(t, seq.Failed)
	assert.False(t, seq.Halted)
}

func TestRunSequence_PolicyRejectionHalts(t *testing.T) {
	r := newTestRunner(t, "echo")
	spawns := countSpawns(t)

	seq := r.RunSequence(context.Background(), []string{"echo ok", "rm -rf /", "echo never"}, SequenceOptions{
		StopOnError: true,
	})

	require.Len(t, seq.Results, 2)
	assert.True(t, seq.Failed)
	// Only the first command ever reached the OS.
	assert.Equal(t, 1, *spawns)
}

func TestRunSequence_FailingLastCommandIsNotHalted(t *testing.T) {
	r := newTestRunner(t, "echo", "false")

	seq := r.RunSequence(context.Background(), []string{"echo a", "false"}, SequenceOptions{
		StopOnError: true,
	})

	require.Len(t, seq.Results, 2)
	assert.True(t, seq.Failed)
	// Nothing was cut short: the failure was the final command.
	assert.False(t, seq.Halted)
}
