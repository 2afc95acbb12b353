package snapshot

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/config"
	"github.com/wcuny/kibo/dbdump"
	"github.com/wcuny/kibo/fsmeta"
	"github.com/wcuny/kibo/internal/dcontext"
	"github.com/wcuny/kibo/manifest"
	"github.com/wcuny/kibo/store"
	"github.com/wcuny/kibo/walker"
)

// SaveOptions controls a single save invocation.
type SaveOptions struct {
	// Overwrite authorizes replacing an existing manifest of the same
	// name.
	Overwrite bool
	// Database, when non-empty, names the MySQL database to dump
	// alongside this snapshot.
	Database  string
	DbOptions dbdump.Options
	// MaxConcurrency bounds the per-file worker pool; 0 selects
	// runtime.NumCPU().
	MaxConcurrency int
	// Progress reports per-file progress as files complete hashing.
	Progress func(done, total int)
}

// Save walks the workspace, hashes and stores its tracked set in
// parallel, and atomically writes a new manifest named name.
func Save(ctx context.Context, ws Workspace, name string, cfg config.Config, opts SaveOptions) (*manifest.Manifest, error) {
	if err := manifest.ValidateName(name); err != nil {
		return nil, err
	}

	var previous *manifest.Manifest
	if manifest.Exists(ws.ManifestsDir(), name) {
		if !opts.Overwrite {
			return nil, kibo.New(kibo.KindSnapshotExists, "snapshot already exists: "+name)
		}
		prev, err := manifest.Read(ws.ManifestsDir(), name)
		if err == nil {
			previous = prev
		}
	}

	rules := walker.Rules{Directories: cfg.Directories, Files: cfg.Files, Ignore: cfg.Ignore}
	walked, err := walker.Walk(ws.Root, rules)
	if err != nil {
		return nil, err
	}

	bs, err := store.New(ws.StoreDir(), cfg.CompressionLevel)
	if err != nil {
		return nil, err
	}

	fileEntries, err := hashAndStoreAll(ctx, ws, bs, walked.Files, opts)
	if err != nil {
		return nil, err
	}

	dirEntries := make([]manifest.DirEntry, 0, len(walked.Dirs))
	for _, d := range walked.Dirs {
		mode, mtime := fsmeta.Capture(d.Info)
		dirEntries = append(dirEntries, manifest.DirEntry{Path: d.RelPath, Mode: mode, ModTime: mtime})
	}

	m := &manifest.Manifest{
		Name:          name,
		FormatVersion: manifest.FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Directories:   dirEntries,
		Files:         fileEntries,
		TrackedDirs:   cfg.Directories,
		TrackedFiles:  cfg.Files,
	}

	if opts.Database != "" {
		dumpName := dbdump.SidecarName(name, opts.Database, time.Now().UTC())
		if _, err := dbdump.Dump(ctx, ws.DbSnapshotsDir(), dumpName, opts.Database, opts.DbOptions); err != nil {
			return nil, err
		}
		m.Database = dumpName
	}

	if err := manifest.Write(ws.ManifestsDir(), m); err != nil {
		return nil, err
	}

	if previous != nil && previous.Database != "" && previous.Database != m.Database {
		os.Remove(ws.AbsDbSnapshot(previous.Database))
	}

	dcontext.GetLogger(ctx).Infof("save %s: %d files, %d directories", name, len(fileEntries), len(dirEntries))
	return m, nil
}

// AbsDbSnapshot resolves a dump sidecar basename to its absolute path.
func (w Workspace) AbsDbSnapshot(basename string) string {
	if basename == "" {
		return ""
	}
	return w.DbSnapshotsDir() + string(os.PathSeparator) + basename
}

func hashAndStoreAll(ctx context.Context, ws Workspace, bs *store.Store, files []walker.Entry, opts SaveOptions) ([]manifest.FileEntry, error) {
	entries := make([]manifest.FileEntry, len(files))

	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var done int32
	total := len(files)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			entry, err := hashAndStoreOne(ws, bs, f)
			if err != nil {
				return err
			}
			entries[i] = entry

			if opts.Progress != nil {
				opts.Progress(int(atomic.AddInt32(&done, 1)), total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, kibo.Wrap(kibo.KindInterrupted, "", ctx.Err())
		}
		return nil, err
	}
	return entries, nil
}

func hashAndStoreOne(ws Workspace, bs *store.Store, f walker.Entry) (manifest.FileEntry, error) {
	mode, mtime := fsmeta.Capture(f.Info)

	if f.Symlink {
		digest, err := bs.Put([]byte(f.LinkTarget))
		if err != nil {
			return manifest.FileEntry{}, err
		}
		return manifest.FileEntry{
			Path: f.RelPath, Digest: string(digest), Size: int64(len(f.LinkTarget)),
			Mode: mode, ModTime: mtime, Symlink: true,
		}, nil
	}

	abs := ws.AbsPath(f.RelPath)
	file, err := os.Open(abs)
	if err != nil {
		return manifest.FileEntry{}, kibo.Wrap(kibo.KindIoError, abs, err)
	}
	defer file.Close()

	digest, size, err := bs.PutReader(file)
	if err != nil {
		return manifest.FileEntry{}, err
	}

	return manifest.FileEntry{
		Path: f.RelPath, Digest: string(digest), Size: size, Mode: mode, ModTime: mtime,
	}, nil
}
