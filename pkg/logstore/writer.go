package logstore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/klauspost/compress/zstd"

	"logstore/pkg/coltype"
)

// defaultMaxCompressBlockSize is the substream write buffer size used when
// a table was created with maxCompressBlockSize <= 0, matching the
// original's own default for WriteBufferFromFile.
const defaultMaxCompressBlockSize = 1 << 20 // 1 MiB

// substreamWriteState is the per-substream state a writer keeps open for
// its whole lifetime: the append file handle, a buffered writer over it,
// a byte counter seeded from the file's size when first opened, and the
// current block's zstd frame writer (nil between blocks).
type substreamWriteState struct {
	path    string
	file    *os.File
	buf     *bufio.Writer
	counter *countingWriter
	enc     *zstd.Encoder
}

// Writer appends a sequence of blocks to a table. Constructing one
// acquires the table descriptor's exclusive lock for the writer's entire
// lifetime, serializing all writers against each other and against any
// reader (spec.md §4.2, §5).
type Writer struct {
	desc  *Descriptor
	marks *os.File

	states map[string]*substreamWriteState
	done   bool
}

// NewWriter locks desc exclusively and opens the marks file in append
// mode. The lock is held until Close returns.
func (d *Descriptor) NewWriter() (*Writer, error) {
	d.mu.Lock()
	if err := d.ensureMarksLoadedLocked(); err != nil {
		d.mu.Unlock()
		return nil, err
	}

	f, err := os.OpenFile(d.marksPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("logstore: open marks file %s: %w", d.marksPath, err)
	}

	w := &Writer{
		desc:   d,
		marks:  f,
		states: make(map[string]*substreamWriteState),
	}
	runtime.SetFinalizer(w, finalizeAbandonedWriter)
	return w, nil
}

// finalizeAbandonedWriter is the writer's destructor-equivalent: a
// goroutine-safe last resort for a Writer dropped without an explicit
// Close, logging rather than propagating, per spec.md §7's error policy.
func finalizeAbandonedWriter(w *Writer) {
	if err := w.Close(); err != nil {
		log.Printf("logstore: writer for table %q finalized on GC with error: %v", w.desc.name, err)
	}
}

// Write validates block against the table's column list and appends it:
// each column's substreams are serialized, then exactly one mark per
// substream is appended to the marks file as a single record-group
// (spec.md §4.2).
func (w *Writer) Write(block *Block) error {
	if w.done {
		return fmt.Errorf("%w: write after writer closed", ErrLogicalError)
	}
	if err := w.validateBlock(block); err != nil {
		return err
	}

	fileCount := w.desc.fileCount()
	marksThisBlock := make([]Mark, fileCount)
	claimed := make(map[string]bool, fileCount)

	for i, name := range block.ColumnNames {
		entry := w.desc.columns[w.desc.columnIdx[name]]
		if err := w.writeColumn(entry, block.Columns[i], claimed, marksThisBlock); err != nil {
			return fmt.Errorf("logstore: write column %q of table %q: %w", name, w.desc.name, err)
		}
	}

	if len(claimed) != fileCount {
		return fmt.Errorf("%w: write-block claimed %d of %d substreams", ErrLogicalError, len(claimed), fileCount)
	}

	return w.writeMarks(marksThisBlock)
}

func (w *Writer) validateBlock(block *Block) error {
	if len(block.ColumnNames) != len(w.desc.columns) {
		return fmt.Errorf("%w: block has %d columns, table has %d", ErrLogicalError, len(block.ColumnNames), len(w.desc.columns))
	}
	for i, name := range block.ColumnNames {
		if _, ok := w.desc.columnIdx[name]; !ok {
			return fmt.Errorf("%w: %q", ErrNoSuchColumn, name)
		}
		if name != w.desc.columns[i].Def.Name {
			return fmt.Errorf("%w: block column %d is %q, table expects %q in that position", ErrLogicalError, i, name, w.desc.columns[i].Def.Name)
		}
	}
	return nil
}

// writeColumn is the pre-phase/serialize/flush split of spec.md §4.2.
func (w *Writer) writeColumn(entry columnEntry, col coltype.Column, claimed map[string]bool, marksThisBlock []Mark) error {
	paths := entry.Def.Type.EnumerateStreams(entry.Def.Name)

	var newlyClaimed []string
	for _, path := range paths {
		if claimed[path] {
			continue
		}
		claimed[path] = true
		newlyClaimed = append(newlyClaimed, path)

		st, err := w.substreamState(path)
		if err != nil {
			return err
		}

		idx := w.desc.streamIdx[path]
		var prevRows uint64
		if existing := w.desc.marks[idx]; len(existing) > 0 {
			prevRows = existing[len(existing)-1].Rows
		}
		marksThisBlock[idx] = Mark{Rows: prevRows + col.RowCount(), Offset: st.counter.Count()}
	}

	claimedSet := make(map[string]bool, len(newlyClaimed))
	for _, p := range newlyClaimed {
		claimedSet[p] = true
	}

	var resolveErr error
	resolver := func(path string) io.Writer {
		if !claimedSet[path] {
			return nil
		}
		st, ok := w.states[path]
		if !ok {
			resolveErr = fmt.Errorf("%w: no registered substream %q", ErrLogicalError, path)
			return nil
		}
		if st.enc == nil {
			enc, err := zstd.NewWriter(st.counter)
			if err != nil {
				resolveErr = fmt.Errorf("logstore: open compressed frame for %s: %w", path, err)
				return nil
			}
			st.enc = enc
		}
		return st.enc
	}

	if err := entry.Def.Type.SerializeBinaryBulkWithMultipleStreams(entry.Def.Name, col, resolver); err != nil {
		return err
	}
	if resolveErr != nil {
		return resolveErr
	}

	for _, path := range newlyClaimed {
		st := w.states[path]
		if st.enc == nil {
			continue
		}
		if err := st.enc.Close(); err != nil {
			return fmt.Errorf("logstore: close compressed frame for %s: %w", path, err)
		}
		st.enc = nil
		if err := st.buf.Flush(); err != nil {
			return fmt.Errorf("logstore: flush substream file %s: %w", path, err)
		}
	}

	return nil
}

func (w *Writer) substreamState(path string) (*substreamWriteState, error) {
	if st, ok := w.states[path]; ok {
		return st, nil
	}

	info, ok := w.desc.substreamByName(path)
	if !ok {
		return nil, fmt.Errorf("%w: no registered substream %q", ErrLogicalError, path)
	}

	f, err := os.OpenFile(info.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logstore: open substream file %s: %w", info.Path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("logstore: stat substream file %s: %w", info.Path, err)
	}

	bufSize := w.desc.maxCompressBlockSize
	if bufSize <= 0 {
		bufSize = defaultMaxCompressBlockSize
	}
	buf := bufio.NewWriterSize(f, bufSize)
	st := &substreamWriteState{
		path:    info.Path,
		file:    f,
		buf:     buf,
		counter: &countingWriter{w: buf, n: uint64(stat.Size())},
	}
	w.states[path] = st
	return st, nil
}

// writeMarks appends exactly one record per substream, in ascending
// column-index order, as a single contiguous write, and mirrors each mark
// into the descriptor's in-memory mark vectors.
func (w *Writer) writeMarks(marks []Mark) error {
	if len(marks) != w.desc.fileCount() {
		return fmt.Errorf("%w: %d marks for %d substream files", ErrLogicalError, len(marks), w.desc.fileCount())
	}

	var group bytes.Buffer
	for _, m := range marks {
		if err := writeMark(&group, m); err != nil {
			return err
		}
	}
	if _, err := w.marks.Write(group.Bytes()); err != nil {
		return fmt.Errorf("logstore: append mark record group: %w", err)
	}
	for idx, m := range marks {
		w.desc.marks[idx] = append(w.desc.marks[idx], m)
	}
	return nil
}

// Close finalizes the writer: flushes every open substream and the marks
// file, records the new on-disk sizes via the size-checker, and releases
// the descriptor's exclusive lock. Close is idempotent.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	runtime.SetFinalizer(w, nil)
	defer w.desc.mu.Unlock()

	var firstErr error
	recordErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	sizes := make(map[string]int64, len(w.states)+1)
	for _, st := range w.states {
		if st.enc != nil {
			recordErr(st.enc.Close())
			st.enc = nil
		}
		recordErr(st.buf.Flush())
		sizes[st.path] = int64(st.counter.Count())
		recordErr(st.file.Close())
	}

	if fi, err := w.marks.Stat(); err == nil {
		sizes[w.desc.marksPath] = fi.Size()
	} else {
		recordErr(err)
	}
	recordErr(w.marks.Close())

	recordErr(w.desc.sizeChecker.update(sizes))

	return firstErr
}
