package coltype

import (
	"fmt"
	"io"
)

// StringType is a scalar variable-length byte string. It has a single
// substream: each row is written as its own byte length (varint)
// immediately followed by its raw bytes, mirroring how tomy_file's
// VarcharColumn lays out a length-prefixed run of strings. Encoding each
// row independently, rather than a block-wide offset table, keeps the
// substream fully row-sequential: a reader can deserialize any run of N
// consecutive rows from wherever the previous row left off, regardless of
// where the write-blocks that produced those bytes began or ended.
type StringType struct{}

func (StringType) Name() string         { return "String" }
func (StringType) IsNullable() bool     { return false }
func (StringType) NestedType() DataType { return nil }
func (StringType) CreateColumn() Column { return &StringColumn{} }

func (StringType) EnumerateStreams(columnName string) []string {
	return []string{columnName}
}

func (StringType) SizesStreamPath(string) (string, bool) { return "", false }

func (t StringType) SerializeBinaryBulkWithMultipleStreams(columnName string, col Column, get StreamWriter) error {
	w := get(columnName)
	if w == nil {
		return nil
	}
	sc, ok := col.(*StringColumn)
	if !ok {
		return fmt.Errorf("coltype: StringType given non-StringColumn %T for %q", col, columnName)
	}

	for i := range sc.Offsets {
		v := sc.At(i)
		if err := writeUvarint(w, uint64(len(v))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, v); err != nil {
			return fmt.Errorf("coltype: writing string data for %q: %w", columnName, err)
		}
	}
	return nil
}

func (t StringType) DeserializeBinaryBulkWithMultipleStreams(columnName string, get StreamReader, rows uint64, _ DeserializeOptions) (Column, error) {
	r := get(columnName)
	if r == nil {
		return nil, fmt.Errorf("coltype: StringType got no reader for required substream %q", columnName)
	}

	offsets := make([]uint64, rows)
	var data []byte
	for i := range offsets {
		n, err := readUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("coltype: decoding length %d of %q: %w", i, columnName, err)
		}
		offsets[i] = uint64(len(data))
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("coltype: reading string %d of %q: %w", i, columnName, err)
		}
		data = append(data, buf...)
	}

	return &StringColumn{Offsets: offsets, Data: data}, nil
}

// StringColumn is a fixed block of strings stored as a byte-offset table
// into a single concatenated buffer.
type StringColumn struct {
	Offsets []uint64
	Data    []byte
}

func (c *StringColumn) Type() DataType   { return StringType{} }
func (c *StringColumn) RowCount() uint64 { return uint64(len(c.Offsets)) }

// At returns the row-th string.
func (c *StringColumn) At(row int) string {
	start := c.Offsets[row]
	end := uint64(len(c.Data))
	if row+1 < len(c.Offsets) {
		end = c.Offsets[row+1]
	}
	return string(c.Data[start:end])
}

// NewStringColumn builds a StringColumn from plain Go strings.
func NewStringColumn(values []string) *StringColumn {
	offsets := make([]uint64, len(values))
	var data []byte
	for i, v := range values {
		offsets[i] = uint64(len(data))
		data = append(data, v...)
	}
	return &StringColumn{Offsets: offsets, Data: data}
}
