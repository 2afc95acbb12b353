// Package snapshot implements the save, load, prune, and registry
// operations at the center of this tool: the algorithms that walk a
// workspace, hash and store its tracked set, and later reconstruct it to
// byte-identical state.
//
// The shapes here are grounded on distribution/distribution's
// pruner/pruner.go (command-level orchestration),
// registry/storage/garbagecollect.go (mark/sweep via errgroup worker
// pools), and vacuum.go (deletion helpers).
package snapshot

import (
	"path/filepath"

	"github.com/wcuny/kibo/config"
)

// Workspace resolves the on-disk layout rooted at a directory containing
// .kibo.toml and .kibo/.
type Workspace struct {
	Root string
}

// Open resolves root's .kibo state directories.
func Open(root string) Workspace {
	return Workspace{Root: root}
}

// KiboDir is .kibo/.
func (w Workspace) KiboDir() string { return filepath.Join(w.Root, config.DirName) }

// StoreDir is .kibo/store/.
func (w Workspace) StoreDir() string { return filepath.Join(w.KiboDir(), "store") }

// ManifestsDir is .kibo/manifests/.
func (w Workspace) ManifestsDir() string { return filepath.Join(w.KiboDir(), "manifests") }

// DbSnapshotsDir is .kibo/db_snapshots/.
func (w Workspace) DbSnapshotsDir() string { return filepath.Join(w.KiboDir(), "db_snapshots") }

// ConfigPath is the workspace's .kibo.toml.
func (w Workspace) ConfigPath() string { return filepath.Join(w.Root, config.FileName) }

// AbsPath joins a manifest-relative path back onto the workspace root.
func (w Workspace) AbsPath(relPath string) string {
	return filepath.Join(w.Root, filepath.FromSlash(relPath))
}
