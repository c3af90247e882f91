// Package syntaxgate runs a fast external-tool syntax check over emitted
// source files. It fails open: any defect in the gate itself (enumeration
// failure, missing tool) must never stall a project, so it reports valid
// rather than propagating its own errors.
package syntaxgate

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// Result is the outcome of a Validate call.
type Result struct {
	Valid bool
	File  string
	Error string
}

// Checker enumerates candidate files under root and runs an external
// syntax check on each, stopping at the first failure. The default
// Checker targets JavaScript via `node --check`; other language families
// substitute an equivalent implementation behind the same interface.
type Checker struct {
	// Command is the external checker invoked as Command file for each
	// candidate. Defaults to "node" with a "--check" flag prepended.
	Command string
	Args    []string
	log     *slog.Logger
}

// New returns a Checker using `node --check <file>`.
func New() *Checker {
	return &Checker{
		Command: "node",
		Args:    []string{"--check"},
		log:     slog.Default().With("component", "syntaxgate"),
	}
}

// Validate enumerates all *.js files outside node_modules under root and
// runs the checker on each. Returns the first failure found; returns
// {Valid:true} if enumeration itself fails (fail-open) or if every file
// passes.
func (c *Checker) Validate(ctx context.Context, root string) Result {
	files, err := c.enumerate(root)
	if err != nil {
		c.log.Warn("syntax gate enumeration failed; failing open", "error", err)
		return Result{Valid: true}
	}
	for _, f := range files {
		if err := c.check(ctx, f); err != nil {
			return Result{Valid: false, File: f, Error: err.Error()}
		}
	}
	return Result{Valid: true}
}

func (c *Checker) enumerate(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".js") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Checker) check(ctx context.Context, file string) error {
	args := append(append([]string{}, c.Args...), file)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			c.log.Warn("syntax checker not found; failing open", "command", c.Command)
			return nil
		}
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return &syntaxError{msg: msg}
	}
	return nil
}

type syntaxError struct{ msg string }

func (e *syntaxError) Error() string { return e.msg }
