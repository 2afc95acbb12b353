// Package fsmeta captures and restores the filesystem metadata (POSIX
// mode bits and modification time) that rides alongside file and
// directory content in a manifest.
package fsmeta

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/internal/dcontext"
	"github.com/wcuny/kibo/manifest"
)

// Capture extracts the mode and mtime recorded in info.
func Capture(info os.FileInfo) (mode uint32, mtime manifest.Timestamp) {
	return uint32(info.Mode().Perm()) | modeExtraBits(info), manifest.FromTime(info.ModTime())
}

// modeExtraBits preserves setuid/setgid/sticky bits alongside the base
// permission bits, so setgid files round-trip.
func modeExtraBits(info os.FileInfo) uint32 {
	var extra uint32
	m := info.Mode()
	if m&os.ModeSetuid != 0 {
		extra |= 1 << 11
	}
	if m&os.ModeSetgid != 0 {
		extra |= 1 << 10
	}
	if m&os.ModeSticky != 0 {
		extra |= 1 << 9
	}
	return extra
}

// osMode converts a captured manifest mode back into an os.FileMode
// suitable for os.Chmod.
func osMode(mode uint32) os.FileMode {
	perm := os.FileMode(mode & 0o777)
	if mode&(1<<11) != 0 {
		perm |= os.ModeSetuid
	}
	if mode&(1<<10) != 0 {
		perm |= os.ModeSetgid
	}
	if mode&(1<<9) != 0 {
		perm |= os.ModeSticky
	}
	return perm
}

// Restore applies mode then mtime to the file at absPath, in that order,
// mtime is restored only after content is written, so a later write
// never bumps a timestamp the caller already set.
func Restore(absPath string, mode uint32, mtime manifest.Timestamp) error {
	if err := os.Chmod(absPath, osMode(mode)); err != nil {
		return kibo.Wrap(kibo.KindPermissionDenied, absPath, err)
	}
	t := mtime.Time()
	if err := os.Chtimes(absPath, t, t); err != nil {
		return kibo.Wrap(kibo.KindIoError, absPath, err)
	}
	return nil
}

// RestoreDirs applies mode and mtime to every directory entry, bottom-up
// (deepest paths first), so that populating a directory with restored
// children does not clobber the directory's own restored mtime. Failure
// to restore a single directory's metadata (for example, a permission
// denied chmod) is logged as a warning and does not abort the pass.
func RestoreDirs(ctx context.Context, root string, dirs []manifest.DirEntry, joinPath func(rel string) string) {
	sorted := append([]manifest.DirEntry(nil), dirs...)
	sort.Slice(sorted, func(i, j int) bool {
		di := strings.Count(sorted[i].Path, "/")
		dj := strings.Count(sorted[j].Path, "/")
		if di != dj {
			return di > dj
		}
		return sorted[i].Path > sorted[j].Path
	})

	for _, d := range sorted {
		abs := joinPath(d.Path)
		if err := Restore(abs, d.Mode, d.ModTime); err != nil {
			dcontext.GetLogger(ctx).Warnf("restoring directory metadata for %s: %v", d.Path, err)
		}
	}
}

// Unchanged reports whether the file at absPath already matches the
// recorded size and mtime — the fast path that lets load
// skip rehashing files that are already in place.
func Unchanged(absPath string, size int64, mtime manifest.Timestamp) bool {
	info, err := os.Stat(absPath)
	if err != nil {
		return false
	}
	if info.Size() != size {
		return false
	}
	want := mtime.Time()
	got := info.ModTime().UTC()
	return got.Equal(want) || got.Sub(want).Abs() < time.Microsecond
}
