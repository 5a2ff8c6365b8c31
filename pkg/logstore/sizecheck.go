package logstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const sizesFileName = "sizes.json"

// SizeChecker persists the last known-good size of every file a table
// touches, keyed by base file name (spec.md §6's sizes.json), and
// compares live sizes against that checkpoint on demand. It is the
// engine's only crash-detection mechanism: spec.md explicitly excludes
// crash-safe recovery beyond this check.
type SizeChecker struct {
	mu   sync.Mutex
	dir  string
	path string

	sizes map[string]int64
}

func newSizeChecker(dir string) (*SizeChecker, error) {
	sc := &SizeChecker{
		dir:   dir,
		path:  filepath.Join(dir, sizesFileName),
		sizes: make(map[string]int64),
	}
	if err := sc.load(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *SizeChecker) load() error {
	data, err := os.ReadFile(sc.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("logstore: read size checkpoint %s: %w", sc.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &sc.sizes); err != nil {
		return fmt.Errorf("logstore: parse size checkpoint %s: %w", sc.path, err)
	}
	return nil
}

// update records the current size of each given path (keyed by its base
// name) and persists the checkpoint atomically via write-then-rename.
func (sc *SizeChecker) update(sizes map[string]int64) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for path, size := range sizes {
		sc.sizes[filepath.Base(path)] = size
	}
	return sc.persistLocked()
}

func (sc *SizeChecker) persistLocked() error {
	data, err := json.MarshalIndent(sc.sizes, "", "  ")
	if err != nil {
		return fmt.Errorf("logstore: marshal size checkpoint: %w", err)
	}

	tmpPath := sc.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("logstore: write size checkpoint tmp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, sc.path); err != nil {
		return fmt.Errorf("logstore: commit size checkpoint %s: %w", sc.path, err)
	}
	return nil
}

// check compares every recorded file against its live on-disk size.
func (sc *SizeChecker) check() (bool, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for name, want := range sc.sizes {
		fi, err := os.Stat(filepath.Join(sc.dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("logstore: stat %s: %w", name, err)
		}
		if fi.Size() != want {
			return false, nil
		}
	}
	return true, nil
}

// retarget rebinds the checker to a table directory that was just renamed.
// Checkpoint entries are keyed by base name, so the map itself needs no
// rewriting — only the directory the names are resolved against.
func (sc *SizeChecker) retarget(newDir string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.dir = newDir
	sc.path = filepath.Join(newDir, sizesFileName)
}
