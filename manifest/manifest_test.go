package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleManifest(name string) *Manifest {
	return &Manifest{
		Name:      name,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Files: []FileEntry{
			{Path: "b.txt", Digest: "d2", Size: 2},
			{Path: "a.txt", Digest: "d1", Size: 1},
		},
		Directories:  []DirEntry{{Path: "sub"}},
		TrackedDirs:  []string{"sub"},
		TrackedFiles: []string{"*.txt"},
	}
}

func TestValidateName(t *testing.T) {
	require.NoError(t, ValidateName("release-1"))
	require.Error(t, ValidateName(""))
	require.Error(t, ValidateName("a/b"))
	require.Error(t, ValidateName(string(make([]byte, MaxNameLength+1))))
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := sampleManifest("release-1")

	require.NoError(t, Write(dir, m))

	got, err := Read(dir, "release-1")
	require.NoError(t, err)
	require.Equal(t, m.Name, got.Name)
	require.Equal(t, FormatVersion, got.FormatVersion)
	require.True(t, m.CreatedAt.Equal(got.CreatedAt))

	// normalize sorts entries by path on both write and read.
	require.Equal(t, []string{"a.txt", "b.txt"}, []string{got.Files[0].Path, got.Files[1].Path})
}

func TestWriteRejectsDuplicatePaths(t *testing.T) {
	dir := t.TempDir()
	m := sampleManifest("dup")
	m.Files = append(m.Files, FileEntry{Path: "a.txt", Digest: "d3"})

	err := Write(dir, m)
	require.Error(t, err)
}

func TestReadUnknownVersionFails(t *testing.T) {
	dir := t.TempDir()
	m := sampleManifest("future")
	m.FormatVersion = FormatVersion + 1

	data, err := encode(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(Path(dir, "future"), data, 0o644))

	_, err = Read(dir, "future")
	require.Error(t, err)
}

func TestExtraFieldsSurviveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := sampleManifest("forward-compat")
	m.Extra = map[string]json.RawMessage{"future_field": json.RawMessage(`"value"`)}

	require.NoError(t, Write(dir, m))

	raw, err := os.ReadFile(Path(dir, "forward-compat"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "future_field")

	got, err := Read(dir, "forward-compat")
	require.NoError(t, err)
	require.Equal(t, json.RawMessage(`"value"`), got.Extra["future_field"])
}

func TestExistsAndRemove(t *testing.T) {
	dir := t.TempDir()
	m := sampleManifest("temp")
	require.NoError(t, Write(dir, m))
	require.True(t, Exists(dir, "temp"))

	require.NoError(t, Remove(dir, "temp"))
	require.False(t, Exists(dir, "temp"))
	require.NoError(t, Remove(dir, "temp")) // idempotent
}

func TestTotalSize(t *testing.T) {
	m := sampleManifest("sizes")
	require.Equal(t, int64(3), m.TotalSize())
}

func TestWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	m := sampleManifest("atomic")
	require.NoError(t, Write(dir, m))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, filepath.Ext(e.Name()) == ".tmp")
	}
}
