package dev

import (
	"context"
	"encoding/json"
	"fmt"

	"devherd/internal/checkpoint"
	"devherd/internal/tools"
)

// StartSessionTool returns the tool that begins a work session.
func (s *Service) StartSessionTool() *tools.Tool {
	return &tools.Tool{
		Name:        "start_session",
		Description: "Start a work session; checkpoint commits are recorded against it",
		Category:    tools.CategorySession,
		Execute:     s.executeStartSession,
		Schema: tools.ToolSchema{
			Required: []string{"description"},
			Properties: map[string]tools.Property{
				"description": {
					Type:        "string",
					Description: "What this session is about",
				},
				"branch": {
					Type:        "string",
					Description: "Branch the work happens on",
				},
			},
		},
	}
}

func (s *Service) executeStartSession(ctx context.Context, args map[string]any) (string, error) {
	description, _ := args["description"].(string)
	if description == "" {
		return "", fmt.Errorf("description is required")
	}

	sess := s.Sessions.Start(description, argString(args, "branch", ""))
	return fmt.Sprintf("Session %s started: %s", sess.ID, sess.Description), nil
}

// EndSessionTool returns the tool that ends the active session.
func (s *Service) EndSessionTool() *tools.Tool {
	return &tools.Tool{
		Name:        "end_session",
		Description: "End the active work session",
		Category:    tools.CategorySession,
		Execute:     s.executeEndSession,
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: map[string]tools.Property{},
		},
	}
}

func (s *Service) executeEndSession(ctx context.Context, args map[string]any) (string, error) {
	ended, ok := s.Sessions.End()
	if !ok {
		return "No active session", nil
	}
	return fmt.Sprintf("Session %s ended with %d commits", ended.ID, len(ended.CommitHashes)), nil
}

// GetCurrentSessionTool returns the tool that reports the active session.
func (s *Service) GetCurrentSessionTool() *tools.Tool {
	return &tools.Tool{
		Name:        "get_current_session",
		Description: "Show the active work session, if any",
		Category:    tools.CategorySession,
		Execute:     s.executeGetCurrentSession,
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: map[string]tools.Property{},
		},
	}
}

func (s *Service) executeGetCurrentSession(ctx context.Context, args map[string]any) (string, error) {
	sess, ok := s.Sessions.Current()
	if !ok {
		return "No active session", nil
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	return string(data), nil
}

// CheckpointTool returns the tool that commits working-tree changes.
func (s *Service) CheckpointTool() *tools.Tool {
	return &tools.Tool{
		Name:        "checkpoint",
		Description: "Stage and commit working-tree changes, tagged as automated",
		Category:    tools.CategorySession,
		Execute:     s.executeCheckpoint,
		Schema: tools.ToolSchema{
			Required: []string{"message"},
			Properties: map[string]tools.Property{
				"message": {
					Type:        "string",
					Description: "Commit message",
				},
				"files": {
					Type:        "array",
					Description: "Restrict the checkpoint to these paths",
					Items:       &tools.PropertyItems{Type: "string"},
				},
				"skip_if_no_changes": {
					Type:        "boolean",
					Description: "Return a no-op result when the tree is clean",
					Default:     true,
				},
			},
		},
	}
}

func (s *Service) executeCheckpoint(ctx context.Context, args map[string]any) (string, error) {
	message, _ := args["message"].(string)
	if message == "" {
		return "", fmt.Errorf("message is required")
	}

	result, err := s.Checkpointer.Checkpoint(ctx, message, checkpoint.Options{
		Files:           argStringSlice(args, "files"),
		SkipIfNoChanges: argBool(args, "skip_if_no_changes", true),
	})

	data, marshalErr := json.MarshalIndent(result, "", "  ")
	if marshalErr != nil {
		return "", fmt.Errorf("failed to encode checkpoint result: %w", marshalErr)
	}
	// A failed checkpoint is reported but must not abort the caller's
	// workflow; the structured result carries the failure.
	return string(data), err
}
