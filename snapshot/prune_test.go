package snapshot

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPruneReclaimsUnreferencedBlobs(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "build/keep.bin", "kept forever")
	cfg := testConfig("build")

	_, err := Save(context.Background(), ws, "v1", cfg, SaveOptions{})
	require.NoError(t, err)

	writeTestFile(t, ws, "build/keep.bin", "replaced content, different digest")
	_, err = Save(context.Background(), ws, "v1", cfg, SaveOptions{Overwrite: true})
	require.NoError(t, err)

	blobsBefore, err := os.ReadDir(ws.StoreDir())
	require.NoError(t, err)
	require.Len(t, blobsBefore, 2) // both digests still present pre-prune

	res, err := Prune(context.Background(), ws, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.BlobsDeleted)

	blobsAfter, err := os.ReadDir(ws.StoreDir())
	require.NoError(t, err)
	require.Len(t, blobsAfter, 1)
}

func TestPruneDryRunDeletesNothing(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "build/keep.bin", "kept")
	cfg := testConfig("build")

	_, err := Save(context.Background(), ws, "v1", cfg, SaveOptions{})
	require.NoError(t, err)
	require.NoError(t, Remove(ws, "v1"))

	res, err := Prune(context.Background(), ws, true)
	require.NoError(t, err)
	require.Equal(t, 1, res.BlobsDeleted)

	blobs, err := os.ReadDir(ws.StoreDir())
	require.NoError(t, err)
	require.Len(t, blobs, 1) // nothing actually removed on a dry run
}

func TestPruneKeepsBlobsReferencedByOtherSnapshots(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "build/shared.bin", "shared content")
	cfg := testConfig("build")

	_, err := Save(context.Background(), ws, "v1", cfg, SaveOptions{})
	require.NoError(t, err)
	_, err = Save(context.Background(), ws, "v2", cfg, SaveOptions{})
	require.NoError(t, err)

	require.NoError(t, Remove(ws, "v1"))

	res, err := Prune(context.Background(), ws, false)
	require.NoError(t, err)
	require.Equal(t, 0, res.BlobsDeleted)
}
