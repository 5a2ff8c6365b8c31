package coltype

import (
	"fmt"
	"io"
)

// Int64Type is a scalar 64-bit signed integer type. It has a single
// substream, named after the column itself.
type Int64Type struct{}

func (Int64Type) Name() string          { return "Int64" }
func (Int64Type) IsNullable() bool      { return false }
func (Int64Type) NestedType() DataType  { return nil }
func (Int64Type) CreateColumn() Column  { return &Int64Column{} }

func (Int64Type) EnumerateStreams(columnName string) []string {
	return []string{columnName}
}

func (Int64Type) SizesStreamPath(string) (string, bool) { return "", false }

func (t Int64Type) SerializeBinaryBulkWithMultipleStreams(columnName string, col Column, get StreamWriter) error {
	w := get(columnName)
	if w == nil {
		return nil
	}
	ic, ok := col.(*Int64Column)
	if !ok {
		return fmt.Errorf("coltype: Int64Type given non-Int64Column %T for %q", col, columnName)
	}
	return writeZigZagVarint(w, ic.Values)
}

func (t Int64Type) DeserializeBinaryBulkWithMultipleStreams(columnName string, get StreamReader, rows uint64, _ DeserializeOptions) (Column, error) {
	r := get(columnName)
	if r == nil {
		return nil, fmt.Errorf("coltype: Int64Type got no reader for required substream %q", columnName)
	}
	values, err := readZigZagVarint(r, rows)
	if err != nil {
		return nil, fmt.Errorf("coltype: decoding %q: %w", columnName, err)
	}
	return &Int64Column{Values: values}, nil
}

// Int64Column is a fixed block of signed 64-bit integers.
type Int64Column struct {
	Values []int64
}

func (c *Int64Column) Type() DataType   { return Int64Type{} }
func (c *Int64Column) RowCount() uint64 { return uint64(len(c.Values)) }

// writeZigZagVarint encodes each value independently with zig-zag +
// varint, the same per-value encoding tomy_file/compression.go layers
// delta encoding on top of for its INT64 columns. This layer deliberately
// omits the delta step: a reader may regroup the same substream's bytes
// into read-blocks that don't align with the write-blocks they were
// written in, so no per-call running state can survive across a value
// boundary. The block-level zstd framing (pkg/logstore) is what actually
// exploits any redundancy across neighboring values.
func writeZigZagVarint(w io.Writer, values []int64) error {
	for _, v := range values {
		if err := writeUvarint(w, zigzagEncode(v)); err != nil {
			return err
		}
	}
	return nil
}

func readZigZagVarint(r io.Reader, rows uint64) ([]int64, error) {
	values := make([]int64, rows)
	for i := range values {
		zz, err := readUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		values[i] = zigzagDecode(zz)
	}
	return values, nil
}
