package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.WriteFile("src/a.js", []byte("hello")))
	content, err := w.ReadFile("src/a.js")
	require.NoError(t, err)
	require.Equal(t, "hello", content)
}

func TestPathContainmentRefused(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	err = w.WriteFile("../escape.txt", []byte("no"))
	require.ErrorIs(t, err, ErrPathEscape)
}

func TestListFilesExcludesNodeModules(t *testing.T) {
	root := t.TempDir()
	w, err := New(root)
	require.NoError(t, err)

	require.NoError(t, w.WriteFile("src/index.js", []byte("x")))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep", "index.js"), []byte("y"), 0o644))

	files, err := w.ListFiles()
	require.NoError(t, err)
	require.Contains(t, files, filepath.Join("src", "index.js"))
	for _, f := range files {
		require.NotContains(t, f, "node_modules")
	}
}

func TestTreeRendersAsciiLayout(t *testing.T) {
	root := t.TempDir()
	w, err := New(root)
	require.NoError(t, err)
	require.NoError(t, w.WriteFile("a.txt", []byte("1")))
	require.NoError(t, w.WriteFile("sub/b.txt", []byte("2")))

	tree, err := w.Tree()
	require.NoError(t, err)
	require.Contains(t, tree, "├── a.txt")
	require.Contains(t, tree, "└── sub")
	require.Contains(t, tree, "b.txt")
}
