// Package checkpoint commits working-tree changes produced by gated
// command executions, optionally associating each commit with the active
// session. A failed checkpoint is reported to the caller but never aborts
// the workflow that triggered it.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"devherd/internal/logging"
	"devherd/internal/session"
)

// ErrCheckpointFailure is returned when the commit step failed (e.g., the
// directory is not version-controlled).
var ErrCheckpointFailure = errors.New("checkpoint failed")

// VersionControl is the git boundary consumed by the checkpointer.
// Implemented by *Git; faked in tests.
type VersionControl interface {
	HasChanges(ctx context.Context, files []string) (bool, error)
	StageAndCommit(ctx context.Context, message string, files []string) (string, error)
}

// Options configures a single checkpoint.
type Options struct {
	// Files restricts the checkpoint to the given paths; empty means the
	// whole working tree.
	Files []string

	// SkipIfNoChanges turns a clean working tree into a no-op result
	// instead of an error.
	SkipIfNoChanges bool
}

// Result summarizes a checkpoint attempt.
type Result struct {
	Committed  bool   `json:"committed"`
	Skipped    bool   `json:"skipped"`
	CommitHash string `json:"commit_hash,omitempty"`
	Message    string `json:"message"`
}

// Checkpointer stages and commits changes, tagging commit messages with an
// automated-provenance prefix and recording hashes in the active session.
type Checkpointer struct {
	vc       VersionControl
	sessions *session.Tracker
	prefix   string
}

// NewCheckpointer creates a checkpointer. prefix tags automated commits;
// empty defaults to "[devherd]".
func NewCheckpointer(vc VersionControl, sessions *session.Tracker, prefix string) *Checkpointer {
	if prefix == "" {
		prefix = "[devherd]"
	}
	return &Checkpointer{vc: vc, sessions: sessions, prefix: prefix}
}

// Checkpoint stages and commits the current working-tree changes. Failures
// are returned as structured results alongside ErrCheckpointFailure so the
// calling workflow can continue without one.
func (c *Checkpointer) Checkpoint(ctx context.Context, message string, opts Options) (Result, error) {
	hasChanges, err := c.vc.HasChanges(ctx, opts.Files)
	if err != nil {
		logging.Checkpoint("Change detection failed: %v", err)
		return Result{Message: err.Error()}, fmt.Errorf("%w: %v", ErrCheckpointFailure, err)
	}

	if !hasChanges {
		if opts.SkipIfNoChanges {
			logging.CheckpointDebug("No changes to checkpoint, skipping")
			return Result{Skipped: true, Message: "no changes to commit"}, nil
		}
		return Result{Message: "no changes to commit"},
			fmt.Errorf("%w: no changes to commit", ErrCheckpointFailure)
	}

	full := message
	if !strings.HasPrefix(full, c.prefix) {
		full = c.prefix + " " + full
	}

	hash, err := c.vc.StageAndCommit(ctx, full, opts.Files)
	if err != nil {
		logging.Checkpoint("Commit failed: %v", err)
		return Result{Message: err.Error()}, fmt.Errorf("%w: %v", ErrCheckpointFailure, err)
	}

	result := Result{Committed: true, CommitHash: hash, Message: full}
	if c.sessions != nil && c.sessions.RecordCommit(hash) {
		logging.CheckpointDebug("Commit %s recorded in active session", hash)
	}
	return result, nil
}
