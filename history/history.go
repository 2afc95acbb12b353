// Package history implements the append-only audit log at
// .kibo/history.log: one JSON line per completed save/load/rm/prune
// operation. It is the "history logging" external collaborator named in
// It sits outside the core save/load/prune algorithms but is still a
// full citizen of this repository's ambient stack.
package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/wcuny/kibo"
)

// FileName is the log's basename under the workspace's .kibo directory.
const FileName = "history.log"

// Entry is one logged operation.
type Entry struct {
	Time     time.Time `json:"time"`
	Op       string    `json:"op"`
	Snapshot string    `json:"snapshot,omitempty"`
	Success  bool      `json:"success"`
	Detail   string    `json:"detail,omitempty"`
}

// Append writes e to the log at kiboDir/history.log, creating the file
// and directory if necessary.
func Append(kiboDir string, e Entry) error {
	if err := os.MkdirAll(kiboDir, 0o777); err != nil {
		return kibo.Wrap(kibo.KindIoError, kiboDir, err)
	}
	path := filepath.Join(kiboDir, FileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return kibo.Wrap(kibo.KindIoError, path, err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return kibo.Wrap(kibo.KindIoError, path, err)
	}
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return kibo.Wrap(kibo.KindIoError, path, err)
	}
	return nil
}

// Filter narrows a Read result.
type Filter struct {
	Snapshot string
	Last     int
}

// Read loads and filters the log at kiboDir/history.log. A missing log
// file is reported as an empty result, not an error.
func Read(kiboDir string, f Filter) ([]Entry, error) {
	path := filepath.Join(kiboDir, FileName)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kibo.Wrap(kibo.KindIoError, path, err)
	}
	defer file.Close()

	var all []Entry
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // tolerate a corrupt line rather than aborting the read
		}
		if f.Snapshot != "" && e.Snapshot != f.Snapshot {
			continue
		}
		all = append(all, e)
	}
	if err := sc.Err(); err != nil {
		return nil, kibo.Wrap(kibo.KindIoError, path, err)
	}

	if f.Last > 0 && len(all) > f.Last {
		all = all[len(all)-f.Last:]
	}
	return all, nil
}
