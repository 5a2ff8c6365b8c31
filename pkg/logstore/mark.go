package logstore

import (
	"encoding/binary"
	"fmt"
	"io"
)

// markRecordSize is sizeof(Mark) on disk: two little-endian uint64s.
const markRecordSize = 16

// Mark is a single checkpoint: the cumulative row count a substream has
// produced through the write-block this mark closes, and the byte offset
// in the substream's data file at which that write-block's compressed
// frame begins.
type Mark struct {
	Rows   uint64
	Offset uint64
}

func readMark(r io.Reader) (Mark, error) {
	var buf [markRecordSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Mark{}, err
	}
	return Mark{
		Rows:   binary.LittleEndian.Uint64(buf[0:8]),
		Offset: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

func writeMark(w io.Writer, m Mark) error {
	var buf [markRecordSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], m.Rows)
	binary.LittleEndian.PutUint64(buf[8:16], m.Offset)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("logstore: write mark: %w", err)
	}
	return nil
}

// MarkIndex is the sequence of checkpoints recorded for one substream,
// one per write-block, in the order they were appended.
type MarkIndex []Mark

// loadMarkIndexes transposes the flat marks file (fileCount consecutive
// records per write-block, ascending column index) into one MarkIndex per
// substream, per spec.md §3's "Per-substream mark vector."
func loadMarkIndexes(data []byte, fileCount int) ([]MarkIndex, error) {
	if fileCount <= 0 {
		return nil, fmt.Errorf("%w: file count must be positive", ErrLogicalError)
	}
	groupSize := fileCount * markRecordSize
	if len(data)%groupSize != 0 {
		return nil, fmt.Errorf("%w: size %d is not a multiple of %d (file_count=%d)",
			ErrInconsistentMarksFile, len(data), groupSize, fileCount)
	}

	numBlocks := len(data) / groupSize
	marks := make([]MarkIndex, fileCount)
	for i := range marks {
		marks[i] = make(MarkIndex, 0, numBlocks)
	}

	off := 0
	for k := 0; k < numBlocks; k++ {
		for ci := 0; ci < fileCount; ci++ {
			rows := binary.LittleEndian.Uint64(data[off : off+8])
			offset := binary.LittleEndian.Uint64(data[off+8 : off+16])
			marks[ci] = append(marks[ci], Mark{Rows: rows, Offset: offset})
			off += markRecordSize
		}
	}
	return marks, nil
}
