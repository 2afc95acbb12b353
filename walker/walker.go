// Package walker discovers the tracked set of a workspace: the files and
// directories selected by a config's directory-name and file-glob rules,
// minus anything matched by the ignore list.
//
// The recursive traversal follows the shape of
// distribution/distribution's registry/storage/driver.WalkFallback; glob
// matching (including "**") is delegated to
// github.com/bmatcuk/doublestar/v4.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wcuny/kibo"
)

// Rules is the subset of config.Config the walker needs: directory base
// names, file glob patterns, and ignore glob patterns.
type Rules struct {
	Directories []string
	Files       []string
	Ignore      []string
}

// Entry is one path discovered by the walker.
type Entry struct {
	// RelPath is forward-slash normalized, relative to the workspace root.
	RelPath string
	IsDir   bool
	Symlink bool
	Info    fs.FileInfo
	// LinkTarget holds the raw target string when Symlink is true.
	LinkTarget string
}

// Result is the sorted, deduplicated output of a walk.
type Result struct {
	Files []Entry
	Dirs  []Entry
}

func matchesAny(patterns []string, relPath string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
	}
	return false
}

func isIgnored(rules Rules, relPath string) bool {
	return matchesAny(rules.Ignore, relPath)
}

// Walk traverses root, applying rules, and returns the tracked set.
// Directory matching is sticky: once a directory is tracked (its base
// name is in rules.Directories), every descendant becomes part of the
// tracked tree unless it matches Ignore. File matching is independent:
// any regular file whose relative path matches a pattern in rules.Files
// is tracked even outside a tracked directory. A path reached by both
// rules appears once.
func Walk(root string, rules Rules) (Result, error) {
	var res Result
	seenFiles := map[string]struct{}{}
	seenDirs := map[string]struct{}{}

	var walk func(absDir, relDir string, inTrackedTree bool) error
	walk = func(absDir, relDir string, inTrackedTree bool) error {
		entries, err := os.ReadDir(absDir)
		if err != nil {
			return kibo.Wrap(kibo.KindIoError, absDir, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, de := range entries {
			name := de.Name()
			absPath := filepath.Join(absDir, name)
			relPath := filepath.ToSlash(filepath.Join(relDir, name))

			if name == ".kibo" {
				continue
			}
			if isIgnored(rules, relPath) {
				continue
			}

			fi, err := os.Lstat(absPath)
			if err != nil {
				return kibo.Wrap(kibo.KindIoError, absPath, err)
			}

			isSymlink := fi.Mode()&os.ModeSymlink != 0
			trackedHere := inTrackedTree
			isDir := de.IsDir() && !isSymlink

			if isDir && !trackedHere {
				for _, d := range rules.Directories {
					if name == d {
						trackedHere = true
						break
					}
				}
			}

			fileMatches := !isDir && matchesAny(rules.Files, relPath)

			switch {
			case isSymlink:
				if trackedHere || fileMatches {
					target, err := os.Readlink(absPath)
					if err != nil {
						return kibo.Wrap(kibo.KindIoError, absPath, err)
					}
					if _, dup := seenFiles[relPath]; !dup {
						seenFiles[relPath] = struct{}{}
						res.Files = append(res.Files, Entry{
							RelPath: relPath, Symlink: true, Info: fi, LinkTarget: target,
						})
					}
				}
			case isDir:
				if trackedHere {
					if _, dup := seenDirs[relPath]; !dup {
						seenDirs[relPath] = struct{}{}
						res.Dirs = append(res.Dirs, Entry{RelPath: relPath, IsDir: true, Info: fi})
					}
				}
				if err := walk(absPath, relPath, trackedHere); err != nil {
					return err
				}
			default:
				if trackedHere || fileMatches {
					if _, dup := seenFiles[relPath]; !dup {
						seenFiles[relPath] = struct{}{}
						res.Files = append(res.Files, Entry{RelPath: relPath, Info: fi})
					}
				}
			}
		}
		return nil
	}

	if err := walk(root, "", false); err != nil {
		return Result{}, err
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].RelPath < res.Files[j].RelPath })
	sort.Slice(res.Dirs, func(i, j int) bool { return res.Dirs[i].RelPath < res.Dirs[j].RelPath })
	return res, nil
}
