package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/internal/dcontext"
	"github.com/wcuny/kibo/manifest"
)

// PruneResult reports what a prune reclaimed.
type PruneResult struct {
	BlobsDeleted      int
	BlobBytesReclaimed int64
	DumpsDeleted      int
}

// Prune performs a mark/sweep garbage collection over the blob store and
// database dump sidecars: every digest and sidecar referenced by any
// manifest is marked live, and everything else under .kibo/store and
// .kibo/db_snapshots is deleted. A manifest that fails to read is treated
// as if it references nothing, so a corrupt manifest can't pin garbage
// forever — but it also means prune should not be run while a save to
// that same snapshot name is still in flight.
func Prune(ctx context.Context, ws Workspace, dryRun bool) (*PruneResult, error) {
	liveDigests, liveDumps, err := mark(ctx, ws)
	if err != nil {
		return nil, err
	}

	res := &PruneResult{}

	blobEntries, err := os.ReadDir(ws.StoreDir())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, kibo.Wrap(kibo.KindIoError, ws.StoreDir(), err)
		}
		blobEntries = nil
	}

	var garbage []string
	for _, e := range blobEntries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, live := liveDigests[e.Name()]; !live {
			garbage = append(garbage, e.Name())
		}
	}

	deleted, bytesFreed, err := sweep(ctx, ws.StoreDir(), garbage, dryRun)
	if err != nil {
		return nil, err
	}
	res.BlobsDeleted = deleted
	res.BlobBytesReclaimed = bytesFreed

	dumpEntries, err := os.ReadDir(ws.DbSnapshotsDir())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, kibo.Wrap(kibo.KindIoError, ws.DbSnapshotsDir(), err)
		}
		dumpEntries = nil
	}
	for _, e := range dumpEntries {
		if e.IsDir() {
			continue
		}
		if _, live := liveDumps[e.Name()]; live {
			continue
		}
		if !dryRun {
			os.Remove(filepath.Join(ws.DbSnapshotsDir(), e.Name()))
		}
		res.DumpsDeleted++
	}

	dcontext.GetLogger(ctx).Infof("prune: %d blobs (%d bytes), %d dumps reclaimed", res.BlobsDeleted, res.BlobBytesReclaimed, res.DumpsDeleted)
	return res, nil
}

// mark enumerates every manifest and unions the digests and dump
// basenames it references.
func mark(ctx context.Context, ws Workspace) (digests map[string]struct{}, dumps map[string]struct{}, err error) {
	digests = make(map[string]struct{})
	dumps = make(map[string]struct{})

	entries, err := os.ReadDir(ws.ManifestsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return digests, dumps, nil
		}
		return nil, nil, kibo.Wrap(kibo.KindIoError, ws.ManifestsDir(), err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		m, err := manifest.Read(ws.ManifestsDir(), name)
		if err != nil {
			dcontext.GetLogger(ctx).Warnf("prune: skipping unreadable manifest %s: %v", name, err)
			continue
		}
		markManifest(m, digests, dumps)
	}
	return digests, dumps, nil
}

func markManifest(m *manifest.Manifest, digests, dumps map[string]struct{}) {
	for _, f := range m.Files {
		digests[f.Digest] = struct{}{}
	}
	if m.Database != "" {
		dumps[m.Database] = struct{}{}
	}
}

// sweep deletes the named garbage files from dir in parallel, bounded by
// runtime.NumCPU(), mirroring the worker-pool shape of a mark/sweep
// collector walking blobs concurrently.
func sweep(ctx context.Context, dir string, names []string, dryRun bool) (int, int64, error) {
	if len(names) == 0 {
		return 0, 0, nil
	}
	if dryRun {
		var total int64
		for _, n := range names {
			if info, err := os.Stat(filepath.Join(dir, n)); err == nil {
				total += info.Size()
			}
		}
		return len(names), total, nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	var deleted int32
	var bytesFreed int64

	for _, n := range names {
		n := n
		g.Go(func() error {
			p := filepath.Join(dir, n)
			info, statErr := os.Stat(p)
			if err := os.Remove(p); err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return kibo.Wrap(kibo.KindIoError, p, err)
			}
			atomic.AddInt32(&deleted, 1)
			if statErr == nil {
				atomic.AddInt64(&bytesFreed, info.Size())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(deleted), bytesFreed, err
	}
	return int(deleted), bytesFreed, nil
}
