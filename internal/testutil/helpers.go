// --- START OF FINAL REVISED FILE internal/testutil/helpers.go ---
// --- START OF NEW FILE internal/testutil/helpers.go ---
package testutil

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateDummyFile writes content to path, creating parent directories.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	dir := filepath.Dir(fullPath)
	require.NoError(t, os.MkdirAll(dir, 0o755), "Failed to create directory %s for dummy file", dir)
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644), "Failed to write dummy file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at path.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Clean(path), 0o755), "Failed to create dummy directory %s", path)
}

// MakeUnreadableDir creates dir with mode 0o000 and restores it on cleanup.
// Tests running as root should skip: permissions are not enforced for root.
func MakeUnreadableDir(t *testing.T, dir string) {
	t.Helper()
	CreateDummyDir(t, dir)
	require.NoError(t, os.Chmod(dir, 0o000))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
}

// SkipIfRoot skips permission-based tests when running as root.
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
}

// BufferLogger returns a debug-level text handler writing into a buffer.
func BufferLogger() (slog.Handler, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}), buf
}

// --- END OF NEW FILE internal/testutil/helpers.go ---

// --- END OF FINAL REVISED FILE internal/testutil/helpers.go ---
