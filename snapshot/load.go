package snapshot

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/config"
	"github.com/wcuny/kibo/dbdump"
	"github.com/wcuny/kibo/fsmeta"
	"github.com/wcuny/kibo/internal/dcontext"
	"github.com/wcuny/kibo/internal/kibouuid"
	"github.com/wcuny/kibo/kibohash"
	"github.com/wcuny/kibo/manifest"
	"github.com/wcuny/kibo/store"
	"github.com/wcuny/kibo/walker"
)

// LoadOptions controls a single load invocation.
type LoadOptions struct {
	IncludeDB      bool
	DbOptions      dbdump.Options
	MaxConcurrency int
	Progress       func(done, total int)
}

// LoadResult summarizes a completed load, including whether the optional
// database restore (if requested) succeeded.
type LoadResult struct {
	Manifest    *manifest.Manifest
	FilesWritten int
	FilesDeleted int
	DirsDeleted  int
	DirsCreated  int
	DbRestored   bool
	DbError      error
}

// Load reconstructs the workspace to the exact state recorded by the
// manifest named name: every tracked path is made to equal the
// manifest's record, every extraneous tracked path is removed, and
// non-tracked paths are left untouched.
func Load(ctx context.Context, ws Workspace, name string, cfg config.Config, opts LoadOptions) (*LoadResult, error) {
	m, err := manifest.Read(ws.ManifestsDir(), name)
	if err != nil {
		return nil, err
	}

	// The directory and file rules are the ones recorded in the manifest,
	// not whatever .kibo.toml currently says. The manifest records no
	// ignore list, so the current config's Ignore is applied.
	rules := walker.Rules{Directories: m.TrackedDirs, Files: m.TrackedFiles, Ignore: cfg.Ignore}
	current, err := walker.Walk(ws.Root, rules)
	if err != nil {
		return nil, err
	}

	res := &LoadResult{Manifest: m}

	wantFiles := make(map[string]struct{}, len(m.Files))
	for _, f := range m.Files {
		wantFiles[f.Path] = struct{}{}
	}
	wantDirs := make(map[string]struct{}, len(m.Directories))
	for _, d := range m.Directories {
		wantDirs[d.Path] = struct{}{}
	}

	// Delete extraneous tracked files.
	for _, f := range current.Files {
		if _, ok := wantFiles[f.RelPath]; !ok {
			if err := os.Remove(ws.AbsPath(f.RelPath)); err != nil && !os.IsNotExist(err) {
				return nil, kibo.Wrap(kibo.KindIoError, f.RelPath, err)
			}
			res.FilesDeleted++
		}
	}

	// Delete extraneous tracked directories, deepest first so a parent
	// empties out before its own removal is attempted.
	extraDirs := make([]string, 0)
	for _, d := range current.Dirs {
		if _, ok := wantDirs[d.RelPath]; !ok {
			extraDirs = append(extraDirs, d.RelPath)
		}
	}
	sort.Slice(extraDirs, func(i, j int) bool {
		return strings.Count(extraDirs[i], "/") > strings.Count(extraDirs[j], "/")
	})
	for _, rel := range extraDirs {
		if err := os.Remove(ws.AbsPath(rel)); err == nil {
			res.DirsDeleted++
		}
		// A non-empty directory (e.g. it still holds an untracked file)
		// is left in place; only the tracked subtree is owned by load.
	}

	// Create directories present in the manifest but absent now, shallow
	// first so parents exist before children.
	missingDirs := make([]manifest.DirEntry, 0)
	for _, d := range m.Directories {
		if _, err := os.Stat(ws.AbsPath(d.Path)); os.IsNotExist(err) {
			missingDirs = append(missingDirs, d)
		}
	}
	sort.Slice(missingDirs, func(i, j int) bool {
		return strings.Count(missingDirs[i].Path, "/") < strings.Count(missingDirs[j].Path, "/")
	})
	for _, d := range missingDirs {
		if err := os.MkdirAll(ws.AbsPath(d.Path), 0o777); err != nil {
			return nil, kibo.Wrap(kibo.KindIoError, d.Path, err)
		}
		res.DirsCreated++
	}

	bs, err := store.New(ws.StoreDir(), 0)
	if err != nil {
		return nil, err
	}

	written, err := materializeAll(ctx, ws, bs, m.Files, opts)
	if err != nil {
		return nil, err
	}
	res.FilesWritten = written

	for _, f := range m.Files {
		if f.Symlink {
			// Chmod and Chtimes follow links; applying them here would
			// change the link target rather than the link.
			continue
		}
		if err := fsmeta.Restore(ws.AbsPath(f.Path), f.Mode, f.ModTime); err != nil {
			return nil, err
		}
	}

	fsmeta.RestoreDirs(ctx, ws.Root, m.Directories, ws.AbsPath)

	if opts.IncludeDB && m.Database != "" {
		err := dbdump.Restore(ctx, ws.DbSnapshotsDir(), m.Database, databaseNameFromSidecar(m.Database, m.Name), opts.DbOptions)
		if err != nil {
			res.DbError = err
		} else {
			res.DbRestored = true
		}
	}

	dcontext.GetLogger(ctx).Infof("load %s: %d written, %d deleted, %d dirs created, %d dirs deleted",
		name, res.FilesWritten, res.FilesDeleted, res.DirsCreated, res.DirsDeleted)
	return res, nil
}

// databaseNameFromSidecar recovers the database name embedded in a
// sidecar basename of the form "<snapshot>-<db>-<unixts>.sql".
func databaseNameFromSidecar(basename, snapshot string) string {
	trimmed := strings.TrimSuffix(basename, ".sql")
	trimmed = strings.TrimPrefix(trimmed, snapshot+"-")
	i := strings.LastIndex(trimmed, "-")
	if i < 0 {
		return trimmed
	}
	return trimmed[:i]
}

func materializeAll(ctx context.Context, ws Workspace, bs *store.Store, files []manifest.FileEntry, opts LoadOptions) (int, error) {
	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var written int32
	total := len(files)

	for _, f := range files {
		f := f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			did, err := materializeOne(ws, bs, f)
			if err != nil {
				return err
			}
			var count int32
			if did {
				count = atomic.AddInt32(&written, 1)
			} else {
				count = atomic.LoadInt32(&written)
			}
			if opts.Progress != nil {
				opts.Progress(int(count), total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return 0, kibo.Wrap(kibo.KindInterrupted, "", ctx.Err())
		}
		return 0, err
	}
	return int(written), nil
}

// materializeOne writes f's content into place unless the local file
// already matches by size and mtime and its content rehashes to f.Digest.
func materializeOne(ws Workspace, bs *store.Store, f manifest.FileEntry) (bool, error) {
	abs := ws.AbsPath(f.Path)

	if !f.Symlink && fsmeta.Unchanged(abs, f.Size, f.ModTime) {
		if rehashed, err := kibohash.FromReader(mustOpen(abs)); err == nil && string(rehashed) == f.Digest {
			return false, nil
		}
		// size/mtime matched but content didn't: fall through to refetch.
	}

	if f.Symlink {
		target, err := bs.Get(kibohash.Digest(f.Digest))
		if err != nil {
			return false, err
		}
		os.Remove(abs)
		if err := os.MkdirAll(filepath.Dir(abs), 0o777); err != nil {
			return false, kibo.Wrap(kibo.KindIoError, abs, err)
		}
		if err := os.Symlink(string(target), abs); err != nil {
			return false, kibo.Wrap(kibo.KindIoError, abs, err)
		}
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o777); err != nil {
		return false, kibo.Wrap(kibo.KindIoError, abs, err)
	}

	tmp := filepath.Join(filepath.Dir(abs), "."+filepath.Base(abs)+"."+kibouuid.NewString()+".tmp")
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return false, kibo.Wrap(kibo.KindIoError, tmp, err)
	}

	if err := bs.WriteTo(kibohash.Digest(f.Digest), out); err != nil {
		out.Close()
		os.Remove(tmp)
		return false, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return false, kibo.Wrap(kibo.KindIoError, tmp, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return false, kibo.Wrap(kibo.KindIoError, abs, err)
	}
	return true, nil
}

// mustOpen opens path, returning a reader that yields an error on first
// read if the open failed, so callers can fold the error path into
// io.Copy's error handling instead of branching early.
func mustOpen(path string) io.Reader {
	f, err := os.Open(path)
	if err != nil {
		return errReader{err}
	}
	return autoClosing{f}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

type autoClosing struct{ f *os.File }

func (a autoClosing) Read(p []byte) (int, error) {
	n, err := a.f.Read(p)
	if err != nil {
		a.f.Close()
	}
	return n, err
}
