// Package sequence executes gated one-shot commands and ordered command
// sequences with a stop-on-error contract. All commands pass through the
// policy gate before anything is spawned.
package sequence

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"devherd/internal/logging"
	"devherd/internal/policy"
)

// ExecutionResult captures one completed (or rejected) command. Immutable
// once produced.
type ExecutionResult struct {
	Command    string        `json:"command"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	Duration   time.Duration `json:"duration"`
	DurationMs int64         `json:"duration_ms"`
	// Error holds the failure description; empty on success. Rejected
	// commands carry the policy message and ExitCode -1.
	Error string `json:"error,omitempty"`
}

// Failed reports whether this command did not complete successfully.
func (r ExecutionResult) Failed() bool {
	return r.Error != "" || r.ExitCode != 0
}

// SequenceResult aggregates the outcomes of an ordered command sequence.
type SequenceResult struct {
	Results []ExecutionResult `json:"results"`
	Failed  bool              `json:"failed"`
	// Halted is true when stop-on-error cut the sequence short; Results
	// then holds every completed command plus the failing one.
	Halted bool `json:"halted"`
}

// Options configures a single command execution.
type Options struct {
	// Dir is the working directory, resolved through the workspace
	// resolver before spawning.
	Dir string

	// Timeout bounds the command; zero uses the runner default.
	Timeout time.Duration

	// Env holds additional KEY=VALUE environment entries.
	Env map[string]string
}

// SequenceOptions configures a command sequence.
type SequenceOptions struct {
	Dir     string
	Timeout time.Duration

	// StopOnError halts the sequence at the first failing or rejected
	// command. Defaults to true at the tool boundary.
	StopOnError bool
}

// Runner executes commands through the policy gate.
type Runner struct {
	gate       *policy.Gate
	resolveDir func(string) string
	timeout    time.Duration
	maxOutput  int
}

// NewRunner creates a command runner. resolveDir turns relative working
// directories into absolute paths (typically config.Store.ResolveDir).
func NewRunner(gate *policy.Gate, resolveDir func(string) string, defaultTimeout time.Duration, maxOutput int) *Runner {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	if maxOutput <= 0 {
		maxOutput = 50000
	}
	if resolveDir == nil {
		resolveDir = func(dir string) string { return dir }
	}
	return &Runner{
		gate:       gate,
		resolveDir: resolveDir,
		timeout:    defaultTimeout,
		maxOutput:  maxOutput,
	}
}

// ResolveDir exposes the workspace resolver, for callers that spawn
// outside the runner (the dev server path).
func (r *Runner) ResolveDir(dir string) string {
	return r.resolveDir(dir)
}

// execCommandContext builds the exec.Cmd for a free-text command line.
// Package variable so tests can count or fake spawns.
var execCommandContext = func(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// RunCommand executes a single gated command. Policy rejection happens
// before any OS-level side effect; execution failures return the captured
// partial output alongside the error.
func (r *Runner) RunCommand(ctx context.Context, command string, opts Options) (ExecutionResult, error) {
	resolved, err := r.gate.Resolve(command)
	if err != nil {
		return rejectedResult(command, err), err
	}
	return r.runResolved(ctx, resolved, opts)
}

// RunResolved executes an already-approved command (the custom tool path,
// which bypassed the allow-list at resolution time).
func (r *Runner) RunResolved(ctx context.Context, command string, opts Options) (ExecutionResult, error) {
	return r.runResolved(ctx, command, opts)
}

func (r *Runner) runResolved(ctx context.Context, command string, opts Options) (ExecutionResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := execCommandContext(execCtx, command)
	cmd.Dir = r.resolveDir(opts.Dir)
	if len(opts.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range opts.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdout, stderr bytes.Buffer
	outWriter := &limitedWriter{buf: &stdout, limit: r.maxOutput}
	errWriter := &limitedWriter{buf: &stderr, limit: r.maxOutput}
	cmd.Stdout = outWriter
	cmd.Stderr = errWriter

	logging.SequenceDebug("Executing %q (dir=%s, timeout=%s)", command, cmd.Dir, timeout)
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := ExecutionResult{
		Command:    command,
		Stdout:     truncateMarker(stdout.String(), outWriter.truncated),
		Stderr:     truncateMarker(stderr.String(), errWriter.truncated),
		Duration:   elapsed,
		DurationMs: elapsed.Milliseconds(),
	}

	if runErr == nil {
		logging.Sequence("Completed %q in %s", command, elapsed.Round(time.Millisecond))
		return result, nil
	}

	if execCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		err := fmt.Errorf("%w after %s: %q", ErrTimeout, timeout, command)
		result.Error = err.Error()
		logging.Sequence("Timed out: %q after %s", command, timeout)
		return result, err
	}

	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		err := fmt.Errorf("%w: %q (exit code %d)", ErrNonZeroExit, command, result.ExitCode)
		result.Error = err.Error()
		logging.Sequence("Failed: %q exited %d", command, result.ExitCode)
		return result, err
	}

	result.ExitCode = -1
	result.Error = runErr.Error()
	return result, fmt.Errorf("command %q failed: %w", command, runErr)
}

// RunSequence executes the commands in order, each through the gate and
// subject to the same per-command timeout. With StopOnError the first
// failing or rejected command halts the sequence; otherwise every command
// runs and the aggregate is failed if at least one command failed.
func (r *Runner) RunSequence(ctx context.Context, commands []string, opts SequenceOptions) SequenceResult {
	seq := SequenceResult{Results: make([]ExecutionResult, 0, len(commands))}

	for i, command := range commands {
		result, err := r.RunCommand(ctx, command, Options{
			Dir:     opts.Dir,
			Timeout: opts.Timeout,
		})
		seq.Results = append(seq.Results, result)

		if err != nil {
			seq.Failed = true
			if opts.StopOnError {
				seq.Halted = i < len(commands)-1
				logging.Sequence("Sequence halted at command %d/%d: %q", i+1, len(commands), command)
				break
			}
		}
	}

	return seq
}

// rejectedResult records a policy rejection without a spawn.
func rejectedResult(command string, err error) ExecutionResult {
	return ExecutionResult{
		Command:  command,
		ExitCode: -1,
		Error:    err.Error(),
	}
}

// limitedWriter wraps a bytes.Buffer and stops retaining output after
// limit bytes, reporting full writes so the child never sees a short
// write.
type limitedWriter struct {
	buf       *bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.truncated = true
		return len(p), nil
	}
	if len(p) <= remaining {
		return w.buf.Write(p)
	}
	if _, err := w.buf.Write(p[:remaining]); err != nil {
		return 0, err
	}
	w.truncated = true
	return len(p), nil
}

// truncateMarker appends the truncation notice to output that hit the cap.
func truncateMarker(s string, truncated bool) string {
	if !truncated {
		return s
	}
	return s + "\n...[truncated]"
}
