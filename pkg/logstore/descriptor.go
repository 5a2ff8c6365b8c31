package logstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"logstore/pkg/coltype"
)

const marksFileName = "__marks.mrk"

// ColumnDef names one column of a table and the data type that knows how
// to decompose it into substreams.
type ColumnDef struct {
	Name string
	Type coltype.DataType
}

// columnEntry is a ColumnDef plus the substream indices it resolves to,
// assigned once at construction time and stable for the life of the
// table (spec.md §3 invariant 5).
type columnEntry struct {
	Def       ColumnDef
	StreamIdx []int
}

// substreamFile is one append-only data file backing a single substream.
type substreamFile struct {
	Name  string // substream name, identical to the file's base name
	Index int    // stable column index: this substream's slot in every write-block's record group
	Path  string
}

// Descriptor is a table: its directory, its columns, the substream files
// they decompose into, the shared mark index, and the single reader/writer
// lock that serializes structural operations against it. One Descriptor is
// meant to be shared by many goroutines — readers and writers alike.
type Descriptor struct {
	mu sync.RWMutex

	dir  string
	name string

	columns    []columnEntry
	columnIdx  map[string]int
	substreams []substreamFile
	streamIdx  map[string]int

	maxCompressBlockSize int

	marksPath   string
	marksLoaded bool
	marks       []MarkIndex // len == len(substreams), indexed by substream index

	sizeChecker *SizeChecker
}

// escapeName mirrors the general scheme on-disk names use throughout the
// engine (table directories, substream file names): anything outside
// [A-Za-z0-9_] is percent-escaped, so arbitrary column/table names always
// map to a single valid path component.
func escapeName(name string) string {
	var b strings.Builder
	for _, r := range []byte(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteByte(r)
		default:
			fmt.Fprintf(&b, "%%%02X", r)
		}
	}
	return b.String()
}

// Create builds a new table descriptor rooted at filepath.Join(rootDir,
// escapeName(name)), registering one data file per distinct substream any
// column decomposes into. All files (data files, marks file,
// size-checkpoint) are created empty; no rows are written yet.
func Create(rootDir, name string, columns []ColumnDef, maxCompressBlockSize int) (*Descriptor, error) {
	if len(columns) == 0 {
		return nil, ErrEmptyColumns
	}

	d := &Descriptor{
		dir:                  filepath.Join(rootDir, escapeName(name)),
		name:                 name,
		columnIdx:            make(map[string]int, len(columns)),
		streamIdx:            make(map[string]int),
		maxCompressBlockSize: maxCompressBlockSize,
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("logstore: create table directory %s: %w", d.dir, err)
	}

	for _, col := range columns {
		if _, dup := d.columnIdx[col.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
		}

		entry := columnEntry{Def: col}
		for _, streamName := range col.Type.EnumerateStreams(col.Name) {
			idx, ok := d.streamIdx[streamName]
			if !ok {
				idx = len(d.substreams)
				path := filepath.Join(d.dir, escapeName(streamName)+".bin")
				f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
				if err != nil {
					return nil, fmt.Errorf("logstore: create substream file %s: %w", path, err)
				}
				f.Close()

				d.streamIdx[streamName] = idx
				d.substreams = append(d.substreams, substreamFile{Name: streamName, Index: idx, Path: path})
			}
			entry.StreamIdx = append(entry.StreamIdx, idx)
		}

		d.columnIdx[col.Name] = len(d.columns)
		d.columns = append(d.columns, entry)
	}

	d.marksPath = filepath.Join(d.dir, marksFileName)
	if f, err := os.OpenFile(d.marksPath, os.O_CREATE|os.O_RDONLY, 0o644); err != nil {
		return nil, fmt.Errorf("logstore: create marks file %s: %w", d.marksPath, err)
	} else {
		f.Close()
	}

	sizesPath := filepath.Join(d.dir, sizesFileName)
	if f, err := os.OpenFile(sizesPath, os.O_CREATE|os.O_RDONLY, 0o644); err != nil {
		return nil, fmt.Errorf("logstore: create size checkpoint %s: %w", sizesPath, err)
	} else {
		f.Close()
	}

	d.marks = make([]MarkIndex, len(d.substreams))

	sc, err := newSizeChecker(d.dir)
	if err != nil {
		return nil, err
	}
	d.sizeChecker = sc

	return d, nil
}

func (d *Descriptor) fileCount() int { return len(d.substreams) }

// EnsureMarksLoaded loads the marks file into memory if it has not been
// loaded yet. Safe to call repeatedly; a second call after a successful
// first is a no-op (spec.md §4.1's "idempotent").
func (d *Descriptor) EnsureMarksLoaded() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureMarksLoadedLocked()
}

func (d *Descriptor) ensureMarksLoadedLocked() error {
	if d.marksLoaded {
		return nil
	}

	data, err := os.ReadFile(d.marksPath)
	if err != nil {
		if os.IsNotExist(err) {
			d.marks = make([]MarkIndex, d.fileCount())
			d.marksLoaded = true
			return nil
		}
		return fmt.Errorf("logstore: read marks file %s: %w", d.marksPath, err)
	}

	if len(data) == 0 {
		d.marks = make([]MarkIndex, d.fileCount())
		d.marksLoaded = true
		return nil
	}

	marks, err := loadMarkIndexes(data, d.fileCount())
	if err != nil {
		return fmt.Errorf("logstore: table %q: %w", d.name, err)
	}
	d.marks = marks
	d.marksLoaded = true
	return nil
}

// getMarksForRowCountLocked returns the mark vector that is the
// authoritative row-count profile of the table: the first substream of
// the first column (spec.md §4.1).
func (d *Descriptor) getMarksForRowCountLocked() MarkIndex {
	firstStream := d.columns[0].StreamIdx[0]
	return d.marks[firstStream]
}

// Rename moves the table's directory and rebinds every cached path to the
// new location. Must run under the exclusive lock for the whole operation
// (spec.md §4.1).
func (d *Descriptor) Rename(newRootDir, newName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	newDir := filepath.Join(newRootDir, escapeName(newName))
	if err := os.Rename(d.dir, newDir); err != nil {
		return fmt.Errorf("logstore: rename table directory %s -> %s: %w", d.dir, newDir, err)
	}

	for i := range d.substreams {
		d.substreams[i].Path = filepath.Join(newDir, escapeName(d.substreams[i].Name)+".bin")
	}
	d.dir = newDir
	d.name = newName
	d.marksPath = filepath.Join(newDir, marksFileName)
	d.sizeChecker.retarget(newDir)

	return nil
}

// CheckData verifies, under the shared lock, that every registered file's
// on-disk size matches its last recorded checkpoint.
func (d *Descriptor) CheckData() (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sizeChecker.check()
}

// Name returns the table's (unescaped) name.
func (d *Descriptor) Name() string { return d.name }

// Dir returns the table's on-disk directory.
func (d *Descriptor) Dir() string { return d.dir }

func (d *Descriptor) columnByName(name string) (columnEntry, error) {
	idx, ok := d.columnIdx[name]
	if !ok {
		return columnEntry{}, fmt.Errorf("%w: %q", ErrNoSuchColumn, name)
	}
	return d.columns[idx], nil
}

func (d *Descriptor) substreamByName(name string) (substreamFile, bool) {
	idx, ok := d.streamIdx[name]
	if !ok {
		return substreamFile{}, false
	}
	return d.substreams[idx], true
}
