package fsmeta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wcuny/kibo/internal/dcontext"
	"github.com/wcuny/kibo/manifest"
)

func TestCaptureAndRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	mode, mtime := Capture(info)

	// Mutate the file so its current state differs, then restore.
	require.NoError(t, os.Chmod(path, 0o644))
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now()))

	require.NoError(t, Restore(path, mode, mtime))

	restored, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), restored.Mode().Perm())
	require.True(t, restored.ModTime().UTC().Equal(mtime.Time()) ||
		restored.ModTime().UTC().Sub(mtime.Time()).Abs() < time.Microsecond)
}

func TestUnchangedDetectsSizeDiff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	info, _ := os.Stat(path)
	_, mtime := Capture(info)

	require.True(t, Unchanged(path, int64(len("content")), mtime))
	require.False(t, Unchanged(path, int64(len("content"))+1, mtime))
}

func TestUnchangedMissingFile(t *testing.T) {
	require.False(t, Unchanged(filepath.Join(t.TempDir(), "nope"), 0, manifest.Timestamp{}))
}

func TestRestoreDirsBottomUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o777))

	dirs := []manifest.DirEntry{
		{Path: "a", Mode: 0o755, ModTime: manifest.FromTime(time.Now())},
		{Path: "a/b", Mode: 0o700, ModTime: manifest.FromTime(time.Now())},
	}

	ctx := dcontext.Background()
	RestoreDirs(ctx, root, dirs, func(rel string) string { return filepath.Join(root, rel) })

	info, err := os.Stat(filepath.Join(root, "a", "b"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestRestoreDirsToleratesFailure(t *testing.T) {
	root := t.TempDir()
	dirs := []manifest.DirEntry{{Path: "missing", Mode: 0o755}}

	ctx := dcontext.Background()
	require.NotPanics(t, func() {
		RestoreDirs(ctx, root, dirs, func(rel string) string { return filepath.Join(root, rel) })
	})
}
