package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"devherd/internal/logging"
)

// Git is a thin adapter over the git CLI, rooted at one working directory.
type Git struct {
	dir string
}

// NewGit creates a git adapter for the given directory.
func NewGit(dir string) *Git {
	return &Git{dir: dir}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s failed: %s", args[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether the directory is inside a git work tree.
func (g *Git) IsRepo(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// HasChanges reports whether the working tree has staged or unstaged
// changes, restricted to files if given.
func (g *Git) HasChanges(ctx context.Context, files []string) (bool, error) {
	args := []string{"status", "--porcelain"}
	if len(files) > 0 {
		args = append(args, "--")
		args = append(args, files...)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// StageAndCommit stages the relevant changes (everything, or just files if
// given), commits with the message, and returns the new commit hash.
func (g *Git) StageAndCommit(ctx context.Context, message string, files []string) (string, error) {
	addArgs := []string{"add"}
	if len(files) > 0 {
		addArgs = append(addArgs, "--")
		addArgs = append(addArgs, files...)
	} else {
		addArgs = append(addArgs, "-A")
	}
	if _, err := g.run(ctx, addArgs...); err != nil {
		return "", err
	}

	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}

	hash, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	logging.Checkpoint("Committed %s: %s", hash[:min(8, len(hash))], message)
	return hash, nil
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}
