package syntaxgate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateFailsOpenOnMissingRoot(t *testing.T) {
	c := New()
	res := c.Validate(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	require.True(t, res.Valid, "enumeration failure must fail open")
}

func TestValidatePassesWithNoJSFiles(t *testing.T) {
	c := New()
	res := c.Validate(context.Background(), t.TempDir())
	require.True(t, res.Valid)
}

func TestValidateDetectsSyntaxError(t *testing.T) {
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not available in PATH")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.js"), []byte("function( {"), 0o644))

	c := New()
	res := c.Validate(context.Background(), dir)
	require.False(t, res.Valid)
	require.Equal(t, filepath.Join(dir, "bad.js"), res.File)
}
