package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wcuny/kibo/internal/dcontext"
	"github.com/wcuny/kibo/manifest"
)

// Info summarizes one snapshot for listing, without loading its full
// file and directory entries.
type Info struct {
	Name      string
	CreatedAt time.Time
	NumFiles  int
	NumDirs   int
	TotalSize int64
	Database  string
}

// Order selects the sort applied by List.
type Order int

const (
	ByName Order = iota
	ByCreated
	BySize
	ByFileCount
)

// List returns every snapshot in the workspace, sorted by order.
// A manifest that fails to decode is skipped with a logged warning rather
// than aborting the whole listing, so one corrupt snapshot doesn't hide
// the rest.
func List(ws Workspace, order Order) ([]Info, error) {
	entries, err := os.ReadDir(ws.ManifestsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		m, err := manifest.Read(ws.ManifestsDir(), name)
		if err != nil {
			dcontext.GetLogger(context.Background()).Warnf("list: skipping unreadable manifest %s: %v", name, err)
			continue
		}
		infos = append(infos, Info{
			Name:      m.Name,
			CreatedAt: m.CreatedAt,
			NumFiles:  len(m.Files),
			NumDirs:   len(m.Directories),
			TotalSize: m.TotalSize(),
			Database:  m.Database,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		switch order {
		case ByCreated:
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		case BySize:
			return infos[i].TotalSize < infos[j].TotalSize
		case ByFileCount:
			return infos[i].NumFiles < infos[j].NumFiles
		default:
			return infos[i].Name < infos[j].Name
		}
	})
	return infos, nil
}

// Remove deletes the manifest named name and, if it owns a database dump
// sidecar not referenced by any other manifest, the sidecar too. It does
// not touch the blob store; unreferenced blobs are reclaimed by Prune.
func Remove(ws Workspace, name string) error {
	m, err := manifest.Read(ws.ManifestsDir(), name)
	if err != nil {
		return err
	}

	if err := manifest.Remove(ws.ManifestsDir(), name); err != nil {
		return err
	}

	if m.Database == "" {
		return nil
	}

	others, err := List(ws, ByName)
	if err != nil {
		return nil // best effort: the manifest is already gone
	}
	for _, o := range others {
		if o.Database == m.Database {
			return nil
		}
	}
	os.Remove(filepath.Join(ws.DbSnapshotsDir(), m.Database))
	return nil
}
