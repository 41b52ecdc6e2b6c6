package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"devherd/internal/checkpoint"
	"devherd/internal/config"
	"devherd/internal/logging"
	"devherd/internal/policy"
	"devherd/internal/process"
	"devherd/internal/sequence"
	"devherd/internal/session"
	"devherd/internal/tools"
	"devherd/internal/tools/dev"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "devherd",
	Short: "devherd - dev server and command policy core for automation agents",
	Long: `devherd tracks named long-running dev servers, gates free-text commands
behind a per-project allow-list, runs ordered command sequences, and
checkpoints resulting working-tree changes into git, scoped to a logical
work session.

The project policy lives in .devherd/config.yaml under the workspace root.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(resolveWorkspace()); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd runs the stdio tool dispatch loop
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tool requests over stdio (one JSON object per line)",
	Long: `Reads JSON requests from stdin, one per line, and writes one JSON
response per request to stdout:

  {"id": 1, "tool": "run_command", "args": {"command": "npm test"}}

On SIGINT/SIGTERM every tracked dev server is force-terminated before
the process exits.`,
	RunE: runServe,
}

// toolCmd executes a single tool and prints its result
var toolCmd = &cobra.Command{
	Use:   "tool [name] [json-args]",
	Short: "Execute a single tool invocation",
	Long: `Executes one tool by name with JSON-encoded arguments and prints the
result. Example:

  devherd tool run_command '{"command": "go test ./..."}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTool,
}

// toolsCmd lists the registered tools
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	RunE:  listTools,
}

// initCmd writes a default config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default .devherd/config.yaml in the workspace",
	RunE:  runInit,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace root directory")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(initCmd)
}

func resolveWorkspace() string {
	if workspace == "" {
		return "."
	}
	return workspace
}

// app bundles the wired collaborators behind the CLI.
type app struct {
	store    *config.Store
	service  *dev.Service
	registry *tools.Registry
}

// buildApp wires the policy store, gate, process manager, runner,
// checkpointer, and session tracker into a registered tool service.
func buildApp(ws string) (*app, error) {
	store, err := config.NewStore(ws)
	if err != nil {
		return nil, err
	}

	cfg, err := store.Config()
	if err != nil {
		return nil, err
	}

	gate := policy.NewGate(store)
	manager := process.NewManager(process.Options{
		StartupGrace: cfg.GetStartupGrace(),
		StopWait:     cfg.GetStopWait(),
	})
	runner := sequence.NewRunner(gate, store.ResolveDir, cfg.GetDefaultTimeout(), cfg.Execution.MaxOutputBytes)
	sessions := session.NewTracker()
	git := checkpoint.NewGit(store.Workspace())
	checkpointer := checkpoint.NewCheckpointer(git, sessions, cfg.Checkpoint.MessagePrefix)

	service := dev.NewService(gate, manager, runner, checkpointer, sessions)
	registry := tools.NewRegistry()
	if err := service.RegisterAll(registry); err != nil {
		return nil, err
	}

	return &app{store: store, service: service, registry: registry}, nil
}

// close tears the app down: kill sweep first, then the policy watcher.
func (a *app) close() {
	killed := a.service.Shutdown()
	if len(killed) > 0 {
		logger.Info("terminated tracked processes", zap.Strings("names", killed))
	}
	_ = a.store.Close()
}

func runTool(cmd *cobra.Command, args []string) error {
	toolArgs := map[string]any{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("invalid JSON arguments: %w", err)
		}
	}

	a, err := buildApp(resolveWorkspace())
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.registry.Execute(cmd.Context(), args[0], toolArgs)
	if result != nil && result.Result != "" {
		fmt.Println(result.Result)
	}
	return err
}

func listTools(cmd *cobra.Command, args []string) error {
	a, err := buildApp(resolveWorkspace())
	if err != nil {
		return err
	}
	defer a.close()

	for _, name := range a.registry.Names() {
		tool := a.registry.Get(name)
		fmt.Printf("%-24s %s\n", name, tool.Description)
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigPath(resolveWorkspace())
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
