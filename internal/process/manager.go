package process

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"

	"devherd/internal/logging"

	"golang.org/x/sync/errgroup"
)

// managed pairs the visible metadata with the exclusively owned OS handle.
type managed struct {
	info    Info
	cmd     *exec.Cmd
	done    chan struct{} // closed once Wait returns
	waitErr error
}

// exited reports whether the process has been reaped.
func (p *managed) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// exitStatus describes how a reaped process ended.
func (p *managed) exitStatus() string {
	state := p.cmd.ProcessState
	if state == nil {
		return "unknown"
	}
	return state.String()
}

// Options configures a Manager.
type Options struct {
	// StartupGrace is how long Start waits for the new process to survive
	// before reporting success. Short in tests, a couple of seconds in
	// production so fast-failing commands (a typo'd executable) surface
	// their exit synchronously instead of dying silently after "started".
	StartupGrace time.Duration

	// StopWait bounds the graceful-stop window before escalating to a
	// forced kill.
	StopWait time.Duration
}

// Manager is the single source of truth for running dev servers. All
// mutations of the registry go through its methods.
type Manager struct {
	mu       sync.Mutex
	procs    map[string]*managed
	grace    time.Duration
	stopWait time.Duration
}

// NewManager creates an empty process manager.
func NewManager(opts Options) *Manager {
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = 2 * time.Second
	}
	if opts.StopWait <= 0 {
		opts.StopWait = 5 * time.Second
	}
	return &Manager{
		procs:    make(map[string]*managed),
		grace:    opts.StartupGrace,
		stopWait: opts.StopWait,
	}
}

// spawnCommand builds the exec.Cmd for a dev server command line. Package
// variable so tests can substitute a fake.
var spawnCommand = func(command, dir string) *exec.Cmd {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/C", command)
	} else {
		cmd = exec.Command("sh", "-c", command)
	}
	cmd.Dir = dir
	return cmd
}

// Start spawns a named dev server and registers it. It fails with
// ErrDuplicateName if the name is taken, and with ErrSpawnFailure if the
// spawn is rejected or the process dies within the startup grace window.
func (m *Manager) Start(name, command, dir string, port int) (Info, error) {
	if name == "" {
		return Info{}, fmt.Errorf("%w: empty name", ErrSpawnFailure)
	}

	m.mu.Lock()
	if _, exists := m.procs[name]; exists {
		m.mu.Unlock()
		return Info{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	cmd := spawnCommand(command, dir)
	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		logging.Process("Spawn failed for %q: %v", name, err)
		return Info{}, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}

	p := &managed{
		info: Info{
			Name:      name,
			Command:   command,
			Dir:       dir,
			PID:       cmd.Process.Pid,
			Port:      port,
			StartedAt: time.Now(),
		},
		cmd:  cmd,
		done: make(chan struct{}),
	}
	m.procs[name] = p
	m.mu.Unlock()

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
		// Drop the record if the process died on its own, so the registry
		// never reports a zombie entry.
		m.removeIfCurrent(name, p)
	}()

	logging.Process("Started %q (pid=%d, port=%d): %s", name, p.info.PID, port, command)

	// Startup grace: let fast-failing commands surface their exit now.
	select {
	case <-p.done:
		status := p.exitStatus()
		logging.Process("Process %q died during startup grace: %s", name, status)
		return Info{}, fmt.Errorf("%w: %q exited during startup (%s)", ErrSpawnFailure, name, status)
	case <-time.After(m.grace):
	}

	return p.info, nil
}

// Stop gracefully terminates a named process, escalating to a forced kill
// after the bounded stop wait. The record is removed once termination is
// confirmed.
func (m *Manager) Stop(name string) (StopResult, error) {
	m.mu.Lock()
	p, ok := m.procs[name]
	if !ok {
		m.mu.Unlock()
		return StopResult{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(m.procs, name)
	m.mu.Unlock()

	result := StopResult{Name: name, Uptime: p.info.Uptime()}
	if p.exited() {
		return result, nil
	}

	logging.Process("Stopping %q (uptime %s)", name, result.Uptime)
	m.terminate(p)

	select {
	case <-p.done:
	case <-time.After(m.stopWait):
		logging.Process("Graceful stop of %q timed out, killing", name)
		result.Forced = true
		_ = p.cmd.Process.Kill()
		<-p.done
	}

	return result, nil
}

// Restart stops a named process and starts it again with its recorded
// command line, directory, and port.
func (m *Manager) Restart(name string) (Info, error) {
	m.mu.Lock()
	p, ok := m.procs[name]
	if !ok {
		m.mu.Unlock()
		return Info{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	info := p.info
	m.mu.Unlock()

	if _, err := m.Stop(name); err != nil {
		return Info{}, err
	}
	return m.Start(name, info.Command, info.Dir, info.Port)
}

// List returns a metadata snapshot of every tracked process, sorted by
// name.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, 0, len(m.procs))
	for _, p := range m.procs {
		out = append(out, p.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the metadata for a single named process.
func (m *Manager) Get(name string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.procs[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p.info, nil
}

// KillAll force-terminates every tracked process, clears the registry, and
// returns the names that were killed. Safe on an empty registry.
func (m *Manager) KillAll() []string {
	m.mu.Lock()
	snapshot := m.procs
	m.procs = make(map[string]*managed)
	m.mu.Unlock()

	if len(snapshot) == 0 {
		return []string{}
	}

	var g errgroup.Group
	names := make([]string, 0, len(snapshot))
	for name, p := range snapshot {
		p := p
		names = append(names, name)
		g.Go(func() error {
			if !p.exited() {
				_ = p.cmd.Process.Kill()
				select {
				case <-p.done:
				case <-time.After(m.stopWait):
					logging.Process("Kill of %q not confirmed within %s", p.info.Name, m.stopWait)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(names)
	logging.Process("Killed all processes: %v", names)
	return names
}

// HealthCheck reports the tracked process count and a liveness judgement.
func (m *Manager) HealthCheck() Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := Health{
		Status:  "Healthy",
		Count:   len(m.procs),
		Uptimes: make(map[string]time.Duration, len(m.procs)),
	}
	for name, p := range m.procs {
		h.Uptimes[name] = p.info.Uptime()
	}
	return h
}

// terminate sends the platform's graceful termination request.
func (m *Manager) terminate(p *managed) {
	if runtime.GOOS == "windows" {
		_ = p.cmd.Process.Kill()
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = p.cmd.Process.Kill()
	}
}

// removeIfCurrent drops the registry entry for name if it still points at
// p. Identity-checked so a restart that reused the name is untouched.
func (m *Manager) removeIfCurrent(name string, p *managed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.procs[name]; ok && current == p {
		delete(m.procs, name)
	}
}
