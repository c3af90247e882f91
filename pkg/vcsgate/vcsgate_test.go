package vcsgate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

func newRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	return dir
}

func TestInitCommitsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	requireGit(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))

	g := New(dir)
	// Configure identity for the commit this Init performs. dir is not a
	// repository yet, so the identity is passed through the environment.
	t.Setenv("GIT_AUTHOR_NAME", "test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")

	require.NoError(t, g.Init(context.Background()))
	changed, err := g.Status(context.Background())
	require.NoError(t, err)
	require.Empty(t, changed)
}

func TestHasUncommittedChangesExcludesRalphFiles(t *testing.T) {
	dir := newRepo(t)
	g := New(dir)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".ralph", "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.md"), []byte("log"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "progress.txt"), []byte("working"), 0o644))

	has, err := g.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	require.False(t, has, "only excluded paths changed")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src.js"), []byte("code"), 0o644))
	has, err = g.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	require.True(t, has)
}

func TestCommitManualChangesExcludesRalphPaths(t *testing.T) {
	dir := newRepo(t)
	g := New(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.md"), []byte("log"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src.js"), []byte("code"), 0o644))

	committed, err := g.CommitManualChanges(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"src.js"}, committed)
}

func TestRollbackToLastCommit(t *testing.T) {
	dir := newRepo(t)
	g := New(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v1"), 0o644))
	require.NoError(t, g.AddAndCommit(ctx, "initial"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("oops"), 0o644))

	require.NoError(t, g.RollbackToLastCommit(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(data))
	_, err = os.Stat(filepath.Join(dir, "untracked.txt"))
	require.True(t, os.IsNotExist(err))
}
