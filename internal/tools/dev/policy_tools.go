package dev

import (
	"context"
	"encoding/json"
	"fmt"

	"devherd/internal/tools"
)

// GetAllowedCommandsTool returns the tool that reports the policy snapshot.
func (s *Service) GetAllowedCommandsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "get_allowed_commands",
		Description: "List the allowed command names and defined custom tools",
		Category:    tools.CategoryPolicy,
		Execute:     s.executeGetAllowedCommands,
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: map[string]tools.Property{},
		},
	}
}

func (s *Service) executeGetAllowedCommands(ctx context.Context, args map[string]any) (string, error) {
	allowed, customTools, err := s.Gate.Snapshot()
	if err != nil {
		return "", err
	}

	snapshot := struct {
		AllowedCommands []string          `json:"allowed_commands"`
		CustomTools     map[string]string `json:"custom_tools"`
	}{AllowedCommands: allowed, CustomTools: customTools}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode policy snapshot: %w", err)
	}
	return string(data), nil
}

// AddAllowedCommandTool returns the tool that adds an allow-list entry.
func (s *Service) AddAllowedCommandTool() *tools.Tool {
	return &tools.Tool{
		Name:        "add_allowed_command",
		Description: "Add a command name to the allow-list and persist the policy",
		Category:    tools.CategoryPolicy,
		Execute:     s.executeAddAllowedCommand,
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "Command name to allow",
				},
			},
		},
	}
}

func (s *Service) executeAddAllowedCommand(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)

	added, err := s.Gate.AddAllowedCommand(command)
	if err != nil {
		return "", err
	}
	if !added {
		return fmt.Sprintf("Command %q is already allowed", command), nil
	}
	return fmt.Sprintf("Command %q added to allowed commands", command), nil
}

// RemoveAllowedCommandTool returns the tool that removes an allow-list
// entry.
func (s *Service) RemoveAllowedCommandTool() *tools.Tool {
	return &tools.Tool{
		Name:        "remove_allowed_command",
		Description: "Remove a command name from the allow-list and persist the policy",
		Category:    tools.CategoryPolicy,
		Execute:     s.executeRemoveAllowedCommand,
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "Command name to remove",
				},
			},
		},
	}
}

func (s *Service) executeRemoveAllowedCommand(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)

	removed, err := s.Gate.RemoveAllowedCommand(command)
	if err != nil {
		return "", err
	}
	if !removed {
		return fmt.Sprintf("Command %q was not in the allowed list", command), nil
	}
	return fmt.Sprintf("Command %q removed from allowed commands", command), nil
}
