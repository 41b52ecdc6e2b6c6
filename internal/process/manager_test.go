//go:build !windows

package process

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestManager() *Manager {
	return NewManager(Options{
		StartupGrace: 50 * time.Millisecond,
		StopWait:     500 * time.Millisecond,
	})
}

func TestStartAndStop(t *testing.T) {
	m := newTestManager()

	info, err := m.Start("web", "sleep 60", t.TempDir(), 3000)
	require.NoError(t, err)
	assert.Equal(t, "web", info.Name)
	assert.Equal(t, 3000, info.Port)
	assert.NotZero(t, info.PID)

	result, err := m.Stop("web")
	require.NoError(t, err)
	assert.Equal(t, "web", result.Name)
	assert.GreaterOrEqual(t, result.Uptime, time.Duration(0))
	assert.Empty(t, m.List())
}

func TestStart_DuplicateName(t *testing.T) {
	m := newTestManager()
	defer m.KillAll()

	first, err := m.Start("api", "sleep 60", "", 0)
	require.NoError(t, err)

	_, err = m.Start("api", "sleep 60", "", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)

	// The first process must be undisturbed.
	got, err := m.Get("api")
	require.NoError(t, err)
	assert.Equal(t, first.PID, got.PID)
}

func TestStart_FastFailureSurfacesExit(t *testing.T) {
	m := newTestManager()

	_, err := m.Start("bad", "exit 3", "", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawnFailure)

	// No zombie entry may remain.
	assert.Empty(t, m.List())
}

func TestStart_BogusExecutable(t *testing.T) {
	m := newTestManager()

	// sh spawns fine but the command inside fails immediately, so the
	// grace window reports the death.
	_, err := m.Start("typo", "definitely-not-a-real-binary-xyz", "", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawnFailure)
	assert.Empty(t, m.List())
}

func TestStop_NotFound(t *testing.T) {
	m := newTestManager()

	_, err := m.Stop("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStop_EscalatesToKill(t *testing.T) {
	m := newTestManager()

	// Trap TERM so only the forced kill can end it.
	_, err := m.Start("stubborn", `trap "" TERM; sleep 60`, "", 0)
	require.NoError(t, err)

	result, err := m.Stop("stubborn")
	require.NoError(t, err)
	assert.True(t, result.Forced)
	assert.Empty(t, m.List())
}

func TestList_SnapshotSorted(t *testing.T) {
	m := newTestManager()
	defer m.KillAll()

	_, err := m.Start("zeta", "sleep 60", "", 0)
	require.NoError(t, err)
	_, err = m.Start("alpha", "sleep 60", "", 8080)
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}

func TestKillAll(t *testing.T) {
	m := newTestManager()

	_, err := m.Start("one", "sleep 60", "", 0)
	require.NoError(t, err)
	_, err = m.Start("two", "sleep 60", "", 0)
	require.NoError(t, err)

	killed := m.KillAll()
	assert.Equal(t, []string{"one", "two"}, killed)
	assert.Empty(t, m.List())
}

func TestKillAll_EmptyRegistry(t *testing.T) {
	m := newTestManager()

	killed := m.KillAll()
	assert.NotNil(t, killed)
	assert.Empty(t, killed)
}

func TestRestart(t *testing.T) {
	m := newTestManager()
	defer m.KillAll()

	first, err := m.Start("web", "sleep 60", "", 4000)
	require.NoError(t, err)

	second, err := m.Restart("web")
	require.NoError(t, err)
	assert.Equal(t, "web", second.Name)
	assert.Equal(t, 4000, second.Port)
	assert.Equal(t, first.Command, second.Command)
	assert.NotEqual(t, first.PID, second.PID)
}

func TestRestart_NotFound(t *testing.T) {
	m := newTestManager()

	_, err := m.Restart("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHealthCheck(t *testing.T) {
	m := newTestManager()
	defer m.KillAll()

	_, err := m.Start("web", "sleep 60", "", 0)
	require.NoError(t, err)

	h := m.HealthCheck()
	assert.Equal(t, "Healthy", h.Status)
	assert.Equal(t, 1, h.Count)
	assert.Contains(t, h.Uptimes, "web")
}

func TestSilentDeathReapsRecord(t *testing.T) {
	m := NewManager(Options{StartupGrace: 10 * time.Millisecond, StopWait: time.Second})

	_, err := m.Start("brief", "sleep 0.2", "", 0)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(m.List()) == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRunWithTimeout_Completes(t *testing.T) {
	got, err := RunWithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRunWithTimeout_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := RunWithTimeout(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunWithTimeout_TimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	_, err := RunWithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "20ms")
}

func TestRunWithTimeout_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := RunWithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
