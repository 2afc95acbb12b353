package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o777))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func relPaths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.RelPath
	}
	return out
}

func TestWalkTracksDirectoryAndDescendants(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build", "out.bin"), "binary")
	writeFile(t, filepath.Join(root, "build", "nested", "deep.bin"), "deep")
	writeFile(t, filepath.Join(root, "scratch", "ignored.txt"), "not tracked")

	res, err := Walk(root, Rules{Directories: []string{"build"}})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"build/out.bin", "build/nested/deep.bin"}, relPaths(res.Files))
	require.ElementsMatch(t, []string{"build", "build/nested"}, relPaths(res.Dirs))
}

func TestWalkMatchesFilesIndependently(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "report.log"), "log line")
	writeFile(t, filepath.Join(root, "sub", "other.log"), "another line")
	writeFile(t, filepath.Join(root, "sub", "skip.txt"), "skip me")

	res, err := Walk(root, Rules{Files: []string{"**/*.log"}})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"report.log", "sub/other.log"}, relPaths(res.Files))
}

func TestWalkHonorsIgnore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build", "keep.bin"), "keep")
	writeFile(t, filepath.Join(root, "build", "cache", "drop.bin"), "drop")

	res, err := Walk(root, Rules{Directories: []string{"build"}, Ignore: []string{"build/cache/**"}})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"build/keep.bin"}, relPaths(res.Files))
}

func TestWalkDedupesPathMatchedByBothRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build", "out.log"), "dual match")

	res, err := Walk(root, Rules{Directories: []string{"build"}, Files: []string{"**/*.log"}})
	require.NoError(t, err)

	require.Equal(t, []string{"build/out.log"}, relPaths(res.Files))
}

func TestWalkSkipsKiboStateDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".kibo", "store", "abc"), "blob")
	writeFile(t, filepath.Join(root, "build", "out.bin"), "binary")

	res, err := Walk(root, Rules{Directories: []string{"build"}})
	require.NoError(t, err)

	require.Equal(t, []string{"build/out.bin"}, relPaths(res.Files))
}

func TestWalkSymlinkCapturesTarget(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build", "real.bin"), "real content")
	require.NoError(t, os.Symlink("real.bin", filepath.Join(root, "build", "link.bin")))

	res, err := Walk(root, Rules{Directories: []string{"build"}})
	require.NoError(t, err)

	var link *Entry
	for i := range res.Files {
		if res.Files[i].RelPath == "build/link.bin" {
			link = &res.Files[i]
		}
	}
	require.NotNil(t, link)
	require.True(t, link.Symlink)
	require.Equal(t, "real.bin", link.LinkTarget)
}

func TestWalkResultIsSorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build", "zeta.bin"), "z")
	writeFile(t, filepath.Join(root, "build", "alpha.bin"), "a")

	res, err := Walk(root, Rules{Directories: []string{"build"}})
	require.NoError(t, err)

	require.Equal(t, []string{"build/alpha.bin", "build/zeta.bin"}, relPaths(res.Files))
}
