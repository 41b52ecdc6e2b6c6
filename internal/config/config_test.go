package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), ".devherd", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "devherd", cfg.Name)
	assert.Contains(t, cfg.Policy.AllowedCommands, "npm")
	assert.Equal(t, 60*time.Second, cfg.GetDefaultTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetStartupGrace())
}

func TestLoad_ParsesPolicy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `name: myproject
policy:
  allowed_commands: [docker, make]
  custom_tools:
    deploy:
      command: "docker compose -f {{file}} up -d"
      description: "Deploy a compose stack"
execution:
  default_timeout: 30s
  startup_grace: 100ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"docker", "make"}, cfg.Policy.AllowedCommands)
	assert.Equal(t, "docker compose -f {{file}} up -d", cfg.Policy.CustomTools["deploy"].Command)
	assert.Equal(t, 30*time.Second, cfg.GetDefaultTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.GetStartupGrace())
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy: [not: valid"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".devherd", "config.yaml")

	cfg := DefaultConfig()
	cfg.Policy.AllowedCommands = []string{"cargo", "rustc"}
	cfg.Policy.CustomTools["bench"] = CustomTool{Command: "cargo bench {{filter}}"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(cfg.Policy, loaded.Policy); diff != "" {
		t.Errorf("policy mismatch (-want +got):\n%s", diff)
	}
}

func TestGetDurations_BadValuesFallBack(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Execution.DefaultTimeout = "bogus"
	cfg.Execution.StopWait = ""

	assert.Equal(t, 60*time.Second, cfg.GetDefaultTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetStopWait())
}
