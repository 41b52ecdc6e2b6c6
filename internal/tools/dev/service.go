// Package dev wires the process, policy, sequence, checkpoint, and session
// cores into the tool surface exposed to the agent.
package dev

import (
	"fmt"

	"devherd/internal/checkpoint"
	"devherd/internal/policy"
	"devherd/internal/process"
	"devherd/internal/sequence"
	"devherd/internal/session"
	"devherd/internal/tools"
)

// Service bundles the collaborators behind the tool surface.
type Service struct {
	Gate         *policy.Gate
	Processes    *process.Manager
	Runner       *sequence.Runner
	Checkpointer *checkpoint.Checkpointer
	Sessions     *session.Tracker
}

// NewService creates the tool service.
func NewService(
	gate *policy.Gate,
	processes *process.Manager,
	runner *sequence.Runner,
	checkpointer *checkpoint.Checkpointer,
	sessions *session.Tracker,
) *Service {
	return &Service{
		Gate:         gate,
		Processes:    processes,
		Runner:       runner,
		Checkpointer: checkpointer,
		Sessions:     sessions,
	}
}

// RegisterAll registers every dev tool in the registry.
func (s *Service) RegisterAll(reg *tools.Registry) error {
	all := []*tools.Tool{
		s.StartServerTool(),
		s.StopServerTool(),
		s.RestartServerTool(),
		s.ListProcessesTool(),
		s.HealthCheckTool(),
		s.RunCommandTool(),
		s.RunCommandSequenceTool(),
		s.RunCustomToolTool(),
		s.GetAllowedCommandsTool(),
		s.AddAllowedCommandTool(),
		s.RemoveAllowedCommandTool(),
		s.StartSessionTool(),
		s.EndSessionTool(),
		s.GetCurrentSessionTool(),
		s.CheckpointTool(),
	}
	for _, tool := range all {
		if err := reg.Register(tool); err != nil {
			return fmt.Errorf("failed to register %s: %w", tool.Name, err)
		}
	}
	return nil
}

// Shutdown force-terminates every tracked process. Called by the host on
// whole-system shutdown.
func (s *Service) Shutdown() []string {
	return s.Processes.KillAll()
}
