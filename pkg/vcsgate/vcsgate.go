// Package vcsgate wraps the git CLI as the orchestrator's version-control
// capability: init, status, commit-manual-changes, commit, and
// hard-rollback over a single project root.
package vcsgate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// excluded paths are never treated as manual changes and never committed
// by CommitManualChanges.
var excludedPrefixes = []string{"agents.md", "progress.txt", ".ralph/"}

// Gate wraps git operations scoped to a single project root.
type Gate struct {
	root string
	log  *slog.Logger
}

// New returns a Gate rooted at root.
func New(root string) *Gate {
	return &Gate{root: root, log: slog.Default().With("component", "vcsgate", "root", root)}
}

func (g *Gate) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.root}, args...)...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, errBuf.String())
	}
	return out.String(), nil
}

// Init creates a repo at root. If any files already exist, they are
// staged and committed as "initial-commit: Project initialized".
func (g *Gate) Init(ctx context.Context) error {
	if _, err := g.git(ctx, "init"); err != nil {
		g.log.Error("git init failed", "error", err)
		return err
	}
	changed, err := g.Status(ctx)
	if err != nil {
		g.log.Error("git status failed during init", "error", err)
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	if _, err := g.git(ctx, "add", "-A"); err != nil {
		g.log.Error("git add failed during init", "error", err)
		return err
	}
	if _, err := g.git(ctx, "commit", "-m", "initial-commit: Project initialized"); err != nil {
		g.log.Error("initial commit failed", "error", err)
		return err
	}
	return nil
}

// Status returns the list of changed paths (tracked or untracked).
func (g *Gate) Status(ctx context.Context) ([]string, error) {
	out, err := g.git(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// porcelain format: "XY path" (X,Y status chars then a space)
		if len(line) < 4 {
			continue
		}
		paths = append(paths, strings.TrimSpace(line[3:]))
	}
	return paths, nil
}

func isExcluded(path string) bool {
	clean := filepath.ToSlash(path)
	for _, prefix := range excludedPrefixes {
		if clean == prefix || strings.HasPrefix(clean, prefix) {
			return true
		}
	}
	return false
}

// HasUncommittedChanges reports whether any changed path falls outside
// the excluded set {agents.md, progress.txt, .ralph/**}.
func (g *Gate) HasUncommittedChanges(ctx context.Context) (bool, error) {
	changed, err := g.Status(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range changed {
		if !isExcluded(p) {
			return true, nil
		}
	}
	return false, nil
}

// CommitManualChanges stages and commits the non-excluded changed paths
// with a "[USER_MANUAL_CHANGE]" message, returning the committed paths.
// Returns (nil, nil) if there was nothing to commit.
func (g *Gate) CommitManualChanges(ctx context.Context) ([]string, error) {
	changed, err := g.Status(ctx)
	if err != nil {
		return nil, err
	}
	var manual []string
	for _, p := range changed {
		if !isExcluded(p) {
			manual = append(manual, p)
		}
	}
	if len(manual) == 0 {
		return nil, nil
	}
	sort.Strings(manual)
	args := append([]string{"add", "--"}, manual...)
	if _, err := g.git(ctx, args...); err != nil {
		g.log.Error("staging manual changes failed", "error", err)
		return nil, err
	}
	msg := fmt.Sprintf("[USER_MANUAL_CHANGE] Detected changes in: %s", strings.Join(manual, ", "))
	if _, err := g.git(ctx, "commit", "-m", msg); err != nil {
		g.log.Error("committing manual changes failed", "error", err)
		return nil, err
	}
	return manual, nil
}

// AddAndCommit stages everything and commits with message.
func (g *Gate) AddAndCommit(ctx context.Context, message string) error {
	if _, err := g.git(ctx, "add", "-A"); err != nil {
		g.log.Error("git add failed", "error", err)
		return err
	}
	if _, err := g.git(ctx, "commit", "-m", message); err != nil {
		g.log.Error("git commit failed", "error", err, "message", message)
		return err
	}
	return nil
}

// RollbackToLastCommit hard-resets to HEAD and removes untracked files
// and directories. Failure is logged by the caller but never masks the
// error that triggered the rollback.
func (g *Gate) RollbackToLastCommit(ctx context.Context) error {
	if _, err := g.git(ctx, "reset", "--hard", "HEAD"); err != nil {
		g.log.Error("git reset --hard failed", "error", err)
		return err
	}
	if _, err := g.git(ctx, "clean", "-fd"); err != nil {
		g.log.Error("git clean failed", "error", err)
		return err
	}
	return nil
}
