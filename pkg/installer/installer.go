// Package installer runs the dependency-manager install fire-and-forget
// when a manual change touches the project's package manifest (spec
// §4.8 prepare_context, §9 "must not block the loop on its outcome").
//
// Grounded on the same exec.CommandContext wrapping idiom as
// pkg/vcsgate and pkg/syntaxgate: a thin wrapper around a subprocess
// call, logged rather than surfaced as an error to any caller.
package installer

import (
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// Npm runs "npm install" in a project's root directory. It implements
// pipeline.Installer.
type Npm struct {
	log *slog.Logger
}

// New returns an Npm installer.
func New() *Npm {
	return &Npm{log: slog.Default().With("component", "installer")}
}

// Install runs "npm install" in root, fire-and-forget: the call is
// expected to be invoked in its own goroutine by the caller, and any
// failure is logged, never returned or retried.
func (n *Npm) Install(root string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, "npm", "install")
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	if err != nil {
		n.log.Warn("dependency install failed", "root", root, "error", err, "output", string(out))
		return
	}
	n.log.Info("dependency install completed", "root", root)
}
