// Package manifest defines the snapshot manifest format and its JSON
// codec. A manifest is the single document describing one snapshot: the
// directory trees and files it tracked, their metadata, and a pointer to
// an optional database dump sidecar.
//
// The codec follows the same discipline as distribution/distribution's
// registry/storage/manifeststore.go: read/validate on decode, atomic
// rename on write, and a hard failure on an unrecognized format version.
package manifest

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/internal/kibouuid"
)

// FormatVersion is the current on-disk manifest format. Bumping it is a
// breaking change to the manifest's compatibility boundary.
const FormatVersion = 1

// MaxNameLength is the maximum length of a snapshot name.
const MaxNameLength = 255

// Timestamp is a POSIX (seconds, nanoseconds) pair, avoiding the
// ambiguity of encoding time.Time directly and matching the
// explicit wire format.
type Timestamp struct {
	Secs  int64 `json:"secs"`
	Nanos int64 `json:"nanos"`
}

// FromTime converts a time.Time to a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp{Secs: t.Unix(), Nanos: int64(t.Nanosecond())}
}

// Time converts a Timestamp back to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Secs, t.Nanos).UTC()
}

// FileEntry is one tracked regular file (or symlink) within a snapshot.
type FileEntry struct {
	Path    string    `json:"path"`
	Digest  string    `json:"digest"`
	Size    int64     `json:"size"`
	Mode    uint32    `json:"mode"`
	ModTime Timestamp `json:"mtime"`
	// Symlink is true when Path names a symbolic link, whose content
	// (the blob addressed by Digest) is the link target bytes.
	Symlink bool `json:"symlink,omitempty"`
}

// DirEntry is one tracked directory, including empty ones.
type DirEntry struct {
	Path    string    `json:"path"`
	Mode    uint32    `json:"mode"`
	ModTime Timestamp `json:"mtime"`
}

// Manifest is the JSON document describing one snapshot.
type Manifest struct {
	Name          string      `json:"name"`
	FormatVersion int         `json:"format_version"`
	CreatedAt     time.Time   `json:"created_at"`
	Directories   []DirEntry  `json:"directories"`
	Files         []FileEntry `json:"files"`
	TrackedDirs   []string    `json:"tracked_directories"`
	TrackedFiles  []string    `json:"tracked_files"`
	// Database is the basename of a dump sidecar under db_snapshots/, or
	// empty if this snapshot carries no database dump.
	Database string `json:"database_dump,omitempty"`

	// Extra preserves unrecognized top-level fields across decode/encode
	// round trips, for forward compatibility with newer writers.
	Extra map[string]json.RawMessage `json:"-"`
}

// TotalSize sums the uncompressed size of every FileEntry.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

// ValidateName enforces the naming constraints: non-empty, bounded
// length, no path separators, no null bytes.
func ValidateName(name string) error {
	if name == "" {
		return kibo.New(kibo.KindConfigInvalid, "snapshot name must not be empty")
	}
	if len(name) > MaxNameLength {
		return kibo.New(kibo.KindConfigInvalid, "snapshot name exceeds 255 characters")
	}
	for _, r := range name {
		if r == '/' || r == '\\' || r == 0 {
			return kibo.New(kibo.KindConfigInvalid, "snapshot name must not contain path separators or null bytes")
		}
	}
	return nil
}

// normalize sorts entries by path and validates uniqueness, per the
// invariant that entries within a manifest have unique relative paths,
// and the determinism guarantee that a manifest's entries are ordered.
func normalize(m *Manifest) error {
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	sort.Slice(m.Directories, func(i, j int) bool { return m.Directories[i].Path < m.Directories[j].Path })

	seen := make(map[string]struct{}, len(m.Files)+len(m.Directories))
	for _, f := range m.Files {
		p := path.Clean(filepath.ToSlash(f.Path))
		if _, dup := seen[p]; dup {
			return kibo.New(kibo.KindManifestCorrupt, "duplicate path in manifest: "+p)
		}
		seen[p] = struct{}{}
	}
	for _, d := range m.Directories {
		p := path.Clean(filepath.ToSlash(d.Path))
		if _, dup := seen[p]; dup {
			return kibo.New(kibo.KindManifestCorrupt, "duplicate path in manifest: "+p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// Path returns the on-disk path of the manifest named name under
// manifestsDir.
func Path(manifestsDir, name string) string {
	return filepath.Join(manifestsDir, name+".json")
}

// Write atomically serializes m to Path(manifestsDir, m.Name). The
// snapshot is only visible to List/Load once this rename completes, so a
// crash mid-write never leaves a partial manifest observable under its
// final name.
func Write(manifestsDir string, m *Manifest) error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}
	if err := normalize(m); err != nil {
		return err
	}
	if m.FormatVersion == 0 {
		m.FormatVersion = FormatVersion
	}

	data, err := encode(m)
	if err != nil {
		return kibo.Wrap(kibo.KindIoError, "", err)
	}

	dest := Path(manifestsDir, m.Name)
	tmp := filepath.Join(manifestsDir, "."+m.Name+"."+kibouuid.NewString()+".tmp")

	if err := os.MkdirAll(manifestsDir, 0o777); err != nil {
		return kibo.Wrap(kibo.KindIoError, manifestsDir, err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return kibo.Wrap(kibo.KindIoError, tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return kibo.Wrap(kibo.KindIoError, dest, err)
	}
	return nil
}

// Exists reports whether a manifest named name already exists under
// manifestsDir.
func Exists(manifestsDir, name string) bool {
	_, err := os.Stat(Path(manifestsDir, name))
	return err == nil
}

// Read loads and validates the manifest named name.
func Read(manifestsDir, name string) (*Manifest, error) {
	return ReadPath(Path(manifestsDir, name))
}

// ReadPath loads and validates the manifest at the given path.
func ReadPath(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kibo.Wrap(kibo.KindSnapshotNotFound, p, err)
		}
		return nil, kibo.Wrap(kibo.KindIoError, p, err)
	}

	m, err := decode(data)
	if err != nil {
		return nil, kibo.Wrap(kibo.KindManifestCorrupt, p, err)
	}
	if m.FormatVersion != FormatVersion {
		return nil, kibo.Wrap(kibo.KindVersionUnsupported, p, nil)
	}
	if err := normalize(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Remove deletes the manifest named name. Idempotent.
func Remove(manifestsDir, name string) error {
	err := os.Remove(Path(manifestsDir, name))
	if err != nil && !os.IsNotExist(err) {
		return kibo.Wrap(kibo.KindIoError, Path(manifestsDir, name), err)
	}
	return nil
}
