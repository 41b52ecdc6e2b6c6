package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"devherd/internal/process"
	"devherd/internal/tools"
)

// dispatchTimeout bounds a single tool invocation in the serve loop. The
// invocation is abandoned, not killed: a dev server started by a slow
// start_server call keeps running and stays in the registry.
const dispatchTimeout = 5 * time.Minute

// request is one inbound tool invocation.
type request struct {
	ID   int            `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// response mirrors a ToolResult back over stdout.
type response struct {
	ID         int    `json:"id"`
	Tool       string `json:"tool"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(resolveWorkspace())
	if err != nil {
		return err
	}
	defer a.close()

	// Pick up external edits to the policy file while serving.
	if err := a.store.Watch(); err != nil {
		logger.Warn("policy watch unavailable", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("serving tool requests on stdio",
		zap.String("workspace", a.store.Workspace()),
		zap.Int("tools", a.registry.Count()))

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go readLines(os.Stdin, lines, readErr)

	encoder := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("stdin read failed: %w", err)
		case line := <-lines:
			resp := a.dispatch(ctx, line)
			if err := encoder.Encode(resp); err != nil {
				return fmt.Errorf("stdout write failed: %w", err)
			}
		}
	}
}

// readLines feeds non-empty stdin lines to the serve loop.
func readLines(r io.Reader, lines chan<- []byte, done chan<- error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		buf := make([]byte, len(line))
		copy(buf, line)
		lines <- buf
	}
	if err := scanner.Err(); err != nil {
		done <- err
		return
	}
	done <- io.EOF
}

// dispatch decodes one request and runs it, bounded by the dispatch
// timeout.
func (a *app) dispatch(ctx context.Context, line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return response{Error: fmt.Sprintf("invalid request: %v", err)}
	}

	result, err := process.RunWithTimeout(ctx, dispatchTimeout,
		func(ctx context.Context) (*tools.ToolResult, error) {
			return a.registry.Execute(ctx, req.Tool, req.Args)
		})

	resp := response{ID: req.ID, Tool: req.Tool}
	if result != nil {
		resp.Result = result.Result
		resp.DurationMs = result.DurationMs
	}
	if err != nil {
		resp.Error = err.Error()
		logger.Warn("tool failed", zap.String("tool", req.Tool), zap.Error(err))
	}
	return resp
}
