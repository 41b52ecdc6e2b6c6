package dev

import (
	"context"
	"encoding/json"
	"fmt"

	"devherd/internal/sequence"
	"devherd/internal/tools"
)

// RunCommandTool returns the tool that executes one gated command.
func (s *Service) RunCommandTool() *tools.Tool {
	return &tools.Tool{
		Name:        "run_command",
		Description: "Execute a shell command after checking it against the allow-list",
		Category:    tools.CategoryCommand,
		Execute:     s.executeRunCommand,
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "The command to execute",
				},
				"cwd": {
					Type:        "string",
					Description: "Working directory, relative to the workspace root",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 60)",
					Default:     60,
				},
				"env": {
					Type:        "object",
					Description: "Additional environment variables",
				},
			},
		},
	}
}

func (s *Service) executeRunCommand(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	result, err := s.Runner.RunCommand(ctx, command, sequence.Options{
		Dir:     argString(args, "cwd", ""),
		Timeout: argTimeout(args, "timeout_seconds"),
		Env:     argStringMap(args, "env"),
	})
	return formatExecution(result, err)
}

// RunCommandSequenceTool returns the tool that executes an ordered list of
// commands with a stop-on-error contract.
func (s *Service) RunCommandSequenceTool() *tools.Tool {
	return &tools.Tool{
		Name:        "run_command_sequence",
		Description: "Execute commands in order, each through the allow-list; stops at the first failure unless told otherwise",
		Category:    tools.CategoryCommand,
		Execute:     s.executeRunCommandSequence,
		Schema: tools.ToolSchema{
			Required: []string{"commands"},
			Properties: map[string]tools.Property{
				"commands": {
					Type:        "array",
					Description: "Ordered list of commands to run",
					Items:       &tools.PropertyItems{Type: "string"},
				},
				"cwd": {
					Type:        "string",
					Description: "Working directory, relative to the workspace root",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Per-command timeout in seconds (default: 60)",
				},
				"stop_on_error": {
					Type:        "boolean",
					Description: "Halt at the first failing command (default: true)",
					Default:     true,
				},
			},
		},
	}
}

func (s *Service) executeRunCommandSequence(ctx context.Context, args map[string]any) (string, error) {
	commands := argStringSlice(args, "commands")
	if len(commands) == 0 {
		return "", fmt.Errorf("commands must be a non-empty list")
	}

	seq := s.Runner.RunSequence(ctx, commands, sequence.SequenceOptions{
		Dir:         argString(args, "cwd", ""),
		Timeout:     argTimeout(args, "timeout_seconds"),
		StopOnError: argBool(args, "stop_on_error", true),
	})

	data, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sequence result: %w", err)
	}
	if seq.Failed {
		return string(data), fmt.Errorf("sequence failed after %d of %d commands", len(seq.Results), len(commands))
	}
	return string(data), nil
}

// RunCustomToolTool returns the tool that invokes a pre-approved custom
// tool template.
func (s *Service) RunCustomToolTool() *tools.Tool {
	return &tools.Tool{
		Name:        "run_custom_tool",
		Description: "Run a pre-approved custom tool, substituting its template placeholders",
		Category:    tools.CategoryCommand,
		Execute:     s.executeRunCustomTool,
		Schema: tools.ToolSchema{
			Required: []string{"name"},
			Properties: map[string]tools.Property{
				"name": {
					Type:        "string",
					Description: "Custom tool name as defined in the project policy",
				},
				"args": {
					Type:        "object",
					Description: "Values for the template's {{placeholder}} tokens",
				},
				"cwd": {
					Type:        "string",
					Description: "Working directory, relative to the workspace root",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 60)",
				},
			},
		},
	}
}

func (s *Service) executeRunCustomTool(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}

	command, err := s.Gate.ResolveCustomTool(name, argStringMap(args, "args"))
	if err != nil {
		return "", err
	}

	// Custom tools were vetted at definition time; skip the allow-list.
	result, err := s.Runner.RunResolved(ctx, command, sequence.Options{
		Dir:     argString(args, "cwd", ""),
		Timeout: argTimeout(args, "timeout_seconds"),
	})
	return formatExecution(result, err)
}

// formatExecution renders an execution result, preserving partial output
// alongside any failure.
func formatExecution(result sequence.ExecutionResult, err error) (string, error) {
	data, marshalErr := json.MarshalIndent(result, "", "  ")
	if marshalErr != nil {
		return "", fmt.Errorf("failed to encode execution result: %w", marshalErr)
	}
	return string(data), err
}
