package dev

import (
	"context"
	"encoding/json"
	"fmt"

	"devherd/internal/tools"
)

// StartServerTool returns the tool that launches a named dev server.
func (s *Service) StartServerTool() *tools.Tool {
	return &tools.Tool{
		Name:        "start_server",
		Description: "Start a long-running dev server process under a unique name",
		Category:    tools.CategoryProcess,
		Execute:     s.executeStartServer,
		Schema: tools.ToolSchema{
			Required: []string{"command", "name"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "The command line to run (must pass the allow-list)",
				},
				"name": {
					Type:        "string",
					Description: "Unique name for the server process",
				},
				"port": {
					Type:        "integer",
					Description: "Port the server is expected to listen on",
				},
				"cwd": {
					Type:        "string",
					Description: "Working directory, relative to the workspace root",
				},
			},
		},
	}
}

func (s *Service) executeStartServer(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	name, _ := args["name"].(string)
	if command == "" || name == "" {
		return "", fmt.Errorf("command and name are required")
	}

	// Servers pass the same gate as one-shot commands.
	resolved, err := s.Gate.Resolve(command)
	if err != nil {
		return "", err
	}

	dir := s.Runner.ResolveDir(argString(args, "cwd", ""))
	info, err := s.Processes.Start(name, resolved, dir, argInt(args, "port", 0))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Server %q started (pid=%d, port=%d, cwd=%s)",
		info.Name, info.PID, info.Port, info.Dir), nil
}

// StopServerTool returns the tool that gracefully stops a named server.
func (s *Service) StopServerTool() *tools.Tool {
	return &tools.Tool{
		Name:        "stop_server",
		Description: "Stop a running dev server by name",
		Category:    tools.CategoryProcess,
		Execute:     s.executeStopServer,
		Schema: tools.ToolSchema{
			Required: []string{"name"},
			Properties: map[string]tools.Property{
				"name": {
					Type:        "string",
					Description: "Name of the server to stop",
				},
			},
		},
	}
}

func (s *Service) executeStopServer(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["name"].(string)

	result, err := s.Processes.Stop(name)
	if err != nil {
		return "", err
	}

	how := "gracefully"
	if result.Forced {
		how = "forcibly"
	}
	return fmt.Sprintf("Server %q stopped %s after %s", result.Name, how, result.Uptime), nil
}

// RestartServerTool returns the tool that restarts a named server with its
// recorded command line.
func (s *Service) RestartServerTool() *tools.Tool {
	return &tools.Tool{
		Name:        "restart_server",
		Description: "Restart a running dev server, reusing its recorded command",
		Category:    tools.CategoryProcess,
		Execute:     s.executeRestartServer,
		Schema: tools.ToolSchema{
			Required: []string{"name"},
			Properties: map[string]tools.Property{
				"name": {
					Type:        "string",
					Description: "Name of the server to restart",
				},
			},
		},
	}
}

func (s *Service) executeRestartServer(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["name"].(string)

	info, err := s.Processes.Restart(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Server %q restarted (pid=%d)", info.Name, info.PID), nil
}

// ListProcessesTool returns the tool that snapshots the process registry.
func (s *Service) ListProcessesTool() *tools.Tool {
	return &tools.Tool{
		Name:        "list_processes",
		Description: "List all tracked dev server processes",
		Category:    tools.CategoryProcess,
		Execute:     s.executeListProcesses,
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: map[string]tools.Property{},
		},
	}
}

func (s *Service) executeListProcesses(ctx context.Context, args map[string]any) (string, error) {
	list := s.Processes.List()
	if len(list) == 0 {
		return "No processes running", nil
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode process list: %w", err)
	}
	return string(data), nil
}

// HealthCheckTool returns the tool that summarizes tracked process health.
func (s *Service) HealthCheckTool() *tools.Tool {
	return &tools.Tool{
		Name:        "health_check",
		Description: "Report the tracked process count and per-process uptime",
		Category:    tools.CategoryProcess,
		Execute:     s.executeHealthCheck,
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: map[string]tools.Property{},
		},
	}
}

func (s *Service) executeHealthCheck(ctx context.Context, args map[string]any) (string, error) {
	health := s.Processes.HealthCheck()

	data, err := json.MarshalIndent(health, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode health summary: %w", err)
	}
	return string(data), nil
}
