package snapshot

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcuny/kibo/manifest"
)

func TestListSortsByName(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "build/out.bin", "content")
	cfg := testConfig("build")

	_, err := Save(context.Background(), ws, "zeta", cfg, SaveOptions{})
	require.NoError(t, err)
	_, err = Save(context.Background(), ws, "alpha", cfg, SaveOptions{})
	require.NoError(t, err)

	infos, err := List(ws, ByName)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "zeta"}, []string{infos[0].Name, infos[1].Name})
}

func TestListSkipsCorruptManifest(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "build/out.bin", "content")
	cfg := testConfig("build")

	_, err := Save(context.Background(), ws, "good", cfg, SaveOptions{})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(ws.ManifestsDir(), 0o777))
	require.NoError(t, os.WriteFile(ws.ManifestsDir()+"/bad.json", []byte("not json"), 0o644))

	infos, err := List(ws, ByName)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "good", infos[0].Name)
}

func TestRemoveDeletesManifest(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "build/out.bin", "content")
	cfg := testConfig("build")

	_, err := Save(context.Background(), ws, "v1", cfg, SaveOptions{})
	require.NoError(t, err)

	require.NoError(t, Remove(ws, "v1"))

	infos, err := List(ws, ByName)
	require.NoError(t, err)
	require.Empty(t, infos)
}

func setManifestDatabase(t *testing.T, ws Workspace, name, dump string) {
	t.Helper()
	m, err := manifest.Read(ws.ManifestsDir(), name)
	require.NoError(t, err)
	m.Database = dump
	require.NoError(t, manifest.Write(ws.ManifestsDir(), m))
}

func TestRemoveKeepsSharedDumpSidecar(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "build/out.bin", "content")
	require.NoError(t, os.MkdirAll(ws.DbSnapshotsDir(), 0o777))
	require.NoError(t, os.WriteFile(ws.DbSnapshotsDir()+"/shared.sql", []byte("dump"), 0o644))

	cfg := testConfig("build")
	_, err := Save(context.Background(), ws, "v1", cfg, SaveOptions{})
	require.NoError(t, err)
	setManifestDatabase(t, ws, "v1", "shared.sql")

	_, err = Save(context.Background(), ws, "v2", cfg, SaveOptions{})
	require.NoError(t, err)
	setManifestDatabase(t, ws, "v2", "shared.sql")

	require.NoError(t, Remove(ws, "v1"))

	_, err = os.Stat(ws.DbSnapshotsDir() + "/shared.sql")
	require.NoError(t, err)
}

func TestRemoveDeletesOrphanedDumpSidecar(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "build/out.bin", "content")
	require.NoError(t, os.MkdirAll(ws.DbSnapshotsDir(), 0o777))
	require.NoError(t, os.WriteFile(ws.DbSnapshotsDir()+"/only.sql", []byte("dump"), 0o644))

	cfg := testConfig("build")
	_, err := Save(context.Background(), ws, "v1", cfg, SaveOptions{})
	require.NoError(t, err)
	setManifestDatabase(t, ws, "v1", "only.sql")

	require.NoError(t, Remove(ws, "v1"))

	_, err = os.Stat(ws.DbSnapshotsDir() + "/only.sql")
	require.True(t, os.IsNotExist(err))
}
