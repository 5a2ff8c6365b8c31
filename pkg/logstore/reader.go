package logstore

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"logstore/pkg/coltype"
)

const defaultMaxReadBuffer = 1 << 20 // 1 MiB

// substreamReadState is the file handle and zstd decoder a reader keeps
// open for a substream once it has been touched; streams are opened
// lazily and dropped as soon as the reader exhausts its row limit.
type substreamReadState struct {
	file *os.File
	dec  *zstd.Decoder
}

func (st *substreamReadState) close() {
	if st.dec != nil {
		st.dec.Close()
	}
	if st.file != nil {
		st.file.Close()
	}
}

// Reader produces a lazy sequence of blocks over a mark range for a
// chosen column subset (spec.md §4.3). A Reader is single-threaded: it is
// meant to be driven by one goroutine, with parallelism coming from
// multiple Readers produced by one Descriptor.Read call.
type Reader struct {
	desc      *Descriptor
	columns   []string
	markBegin int
	rowsLimit uint64
	blockSize uint64

	maxReadBuffer int
	rowsRead      uint64
	states        map[string]*substreamReadState
}

func (d *Descriptor) newReaderLocked(columns []string, markBegin int, rowsLimit, blockSize uint64, maxReadBuffer int) (*Reader, error) {
	for _, name := range columns {
		if _, ok := d.columnIdx[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrNoSuchColumn, name)
		}
	}
	if maxReadBuffer <= 0 {
		maxReadBuffer = defaultMaxReadBuffer
	}
	if blockSize == 0 {
		blockSize = rowsLimit
	}

	return &Reader{
		desc:          d,
		columns:       columns,
		markBegin:     markBegin,
		rowsLimit:     rowsLimit,
		blockSize:     blockSize,
		maxReadBuffer: maxReadBuffer,
		states:        make(map[string]*substreamReadState),
	}, nil
}

// Next produces the next block of at most blockSize rows, or io.EOF once
// rowsLimit rows have been produced. It never returns a partial
// write-block's worth of rows spanning beyond rowsLimit.
func (r *Reader) Next() (*Block, error) {
	if r.rowsRead >= r.rowsLimit {
		r.Close()
		return nil, io.EOF
	}

	toRead := r.blockSize
	if remaining := r.rowsLimit - r.rowsRead; toRead > remaining {
		toRead = remaining
	}

	groupSizes := make(map[string][]uint64)
	columns := make([]coltype.Column, len(r.columns))

	for i, name := range r.columns {
		entry, err := r.desc.columnByName(name)
		if err != nil {
			return nil, err
		}

		opts := coltype.DefaultDeserializeOptions
		sizePath, hasSizePath := entry.Def.Type.SizesStreamPath(name)
		if hasSizePath {
			if cached, ok := groupSizes[sizePath]; ok {
				opts = coltype.DeserializeOptions{ReadOffsets: false, SharedOffsets: cached}
			}
		}

		var resolveErr error
		resolver := func(path string) io.Reader {
			if hasSizePath && path == sizePath && !opts.ReadOffsets {
				return nil
			}
			st, err := r.substreamState(path)
			if err != nil {
				resolveErr = err
				return nil
			}
			return st.dec
		}

		col, err := entry.Def.Type.DeserializeBinaryBulkWithMultipleStreams(name, resolver, toRead, opts)
		if resolveErr != nil {
			return nil, resolveErr
		}
		if err != nil {
			return nil, fmt.Errorf("logstore: read column %q of table %q: %w", name, r.desc.name, err)
		}

		if hasSizePath && opts.ReadOffsets {
			if sizes, ok := extractArraySizes(col); ok {
				groupSizes[sizePath] = sizes
			}
		}

		columns[i] = col
	}

	r.rowsRead += toRead
	if r.rowsRead >= r.rowsLimit {
		r.Close()
	}

	return &Block{ColumnNames: r.columns, Columns: columns}, nil
}

// extractArraySizes finds the per-row element counts col was deserialized
// with, so a sibling column of the same nested group can reuse them
// without re-reading the shared size substream.
func extractArraySizes(col coltype.Column) ([]uint64, bool) {
	oc, ok := col.(coltype.OffsetCarrier)
	if !ok {
		return nil, false
	}
	counts := oc.ArrayCounts()
	return counts, counts != nil
}

func (r *Reader) substreamState(path string) (*substreamReadState, error) {
	if st, ok := r.states[path]; ok {
		return st, nil
	}

	info, ok := r.desc.substreamByName(path)
	if !ok {
		return nil, fmt.Errorf("%w: no registered substream %q", ErrLogicalError, path)
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return nil, fmt.Errorf("logstore: open substream file %s: %w", info.Path, err)
	}

	var offset uint64
	if r.markBegin > 0 {
		marks := r.desc.marks[info.Index]
		if r.markBegin >= len(marks) {
			f.Close()
			return nil, fmt.Errorf("%w: mark index %d out of range for substream %q (%d marks)", ErrLogicalError, r.markBegin, path, len(marks))
		}
		offset = marks[r.markBegin].Offset
	}

	if offset > 0 {
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("logstore: seek substream file %s to %d: %w", info.Path, offset, err)
		}
	}

	buffered := bufio.NewReaderSize(f, r.maxReadBuffer)
	dec, err := zstd.NewReader(buffered)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("logstore: open decompressor for %s: %w", info.Path, err)
	}

	st := &substreamReadState{file: f, dec: dec}
	r.states[path] = st
	return st, nil
}

// Close releases every open substream file handle and decoder. It is safe
// to call more than once and is called automatically once the reader is
// exhausted (spec.md §4.3 point 5).
func (r *Reader) Close() error {
	for path, st := range r.states {
		st.close()
		delete(r.states, path)
	}
	return nil
}
