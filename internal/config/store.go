package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"devherd/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Store provides cached, persistent access to the project policy.
// The cache is invalidated when the config file changes on disk (via
// fsnotify) and on every SavePolicy.
type Store struct {
	mu        sync.RWMutex
	workspace string
	cached    *Config
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	doneCh    chan struct{}
	watching  bool
}

// NewStore creates a policy store rooted at the given workspace directory.
func NewStore(workspace string) (*Store, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	return &Store{workspace: abs}, nil
}

// Workspace returns the absolute workspace root.
func (s *Store) Workspace() string {
	return s.workspace
}

// ResolveDir turns a working directory into an absolute path under the
// workspace. An empty dir resolves to the workspace root; relative dirs are
// resolved against it. Absolute dirs pass through unchanged.
func (s *Store) ResolveDir(dir string) string {
	if dir == "" {
		return s.workspace
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.workspace, dir)
}

// LoadPolicy returns the current project policy, reading the config file
// if no cached copy is valid.
func (s *Store) LoadPolicy() (*ProjectPolicy, error) {
	s.mu.RLock()
	if s.cached != nil {
		policy := s.cached.Policy
		s.mu.RUnlock()
		return clonePolicy(&policy), nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		cfg, err := Load(ConfigPath(s.workspace))
		if err != nil {
			return nil, err
		}
		s.cached = cfg
	}
	policy := s.cached.Policy
	return clonePolicy(&policy), nil
}

// SavePolicy persists an updated policy back to the config file, keeping
// the rest of the configuration intact.
func (s *Store) SavePolicy(policy *ProjectPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cached
	if cfg == nil {
		loaded, err := Load(ConfigPath(s.workspace))
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cfg.Policy = *clonePolicy(policy)
	if err := cfg.Save(ConfigPath(s.workspace)); err != nil {
		return err
	}
	s.cached = cfg
	return nil
}

// Config returns the full cached configuration, loading it if needed.
func (s *Store) Config() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		cfg, err := Load(ConfigPath(s.workspace))
		if err != nil {
			return nil, err
		}
		s.cached = cfg
	}
	return s.cached, nil
}

// Invalidate drops the cached config so the next read hits the disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Watch starts watching the config directory and invalidates the cache
// whenever the config file is written or removed. Safe to call once;
// subsequent calls are no-ops.
func (s *Store) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watching {
		return nil
	}

	dir := filepath.Join(s.workspace, ".devherd")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.watching = true

	go s.watchLoop()

	logging.BootDebug("Watching policy file: %s", ConfigPath(s.workspace))
	return nil
}

func (s *Store) watchLoop() {
	defer close(s.doneCh)

	configName := filepath.Base(ConfigPath(s.workspace))
	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				logging.BootDebug("Policy file changed (%s), invalidating cache", event.Op)
				s.Invalidate()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Warn("Policy watcher error: %v", err)
		}
	}
}

// Close stops the watcher if running.
func (s *Store) Close() error {
	s.mu.Lock()
	if !s.watching {
		s.mu.Unlock()
		return nil
	}
	s.watching = false
	close(s.stopCh)
	watcher := s.watcher
	done := s.doneCh
	s.mu.Unlock()

	err := watcher.Close()
	<-done
	return err
}

func clonePolicy(p *ProjectPolicy) *ProjectPolicy {
	out := &ProjectPolicy{
		AllowedCommands: append([]string(nil), p.AllowedCommands...),
		CustomTools:     make(map[string]CustomTool, len(p.CustomTools)),
	}
	for name, tool := range p.CustomTools {
		out.CustomTools[name] = tool
	}
	return out
}
