package coltype

import (
	"fmt"
	"io"
)

// NullableType wraps another type with an extra "is this row null" bitmap
// substream, named "<column>.null". The wrapped type's own substreams
// still carry a value for every row (including null ones, where the value
// is whatever the inner column happened to hold) — the bitmap is
// authoritative.
type NullableType struct {
	Inner DataType
}

func (t NullableType) Name() string         { return "Nullable(" + t.Inner.Name() + ")" }
func (t NullableType) IsNullable() bool     { return true }
func (t NullableType) NestedType() DataType { return t.Inner }
func (t NullableType) CreateColumn() Column {
	return &NullableColumn{Inner: t.Inner.CreateColumn()}
}

func nullStreamName(columnName string) string { return columnName + ".null" }

func (t NullableType) EnumerateStreams(columnName string) []string {
	return append([]string{nullStreamName(columnName)}, t.Inner.EnumerateStreams(columnName)...)
}

func (t NullableType) SizesStreamPath(columnName string) (string, bool) {
	return t.Inner.SizesStreamPath(columnName)
}

func (t NullableType) SerializeBinaryBulkWithMultipleStreams(columnName string, col Column, get StreamWriter) error {
	nc, ok := col.(*NullableColumn)
	if !ok {
		return fmt.Errorf("coltype: NullableType given non-NullableColumn %T for %q", col, columnName)
	}

	if w := get(nullStreamName(columnName)); w != nil {
		buf := make([]byte, len(nc.Null))
		for i, isNull := range nc.Null {
			if isNull {
				buf[i] = 1
			}
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("coltype: writing null bitmap for %q: %w", columnName, err)
		}
	}

	return t.Inner.SerializeBinaryBulkWithMultipleStreams(columnName, nc.Inner, get)
}

func (t NullableType) DeserializeBinaryBulkWithMultipleStreams(columnName string, get StreamReader, rows uint64, opts DeserializeOptions) (Column, error) {
	var null []bool
	if r := get(nullStreamName(columnName)); r != nil {
		buf := make([]byte, rows)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("coltype: reading null bitmap for %q: %w", columnName, err)
		}
		null = make([]bool, rows)
		for i, b := range buf {
			null[i] = b != 0
		}
	}

	inner, err := t.Inner.DeserializeBinaryBulkWithMultipleStreams(columnName, get, rows, opts)
	if err != nil {
		return nil, err
	}

	return &NullableColumn{Null: null, Inner: inner}, nil
}

// NullableColumn pairs a null bitmap with a value column of the wrapped
// type; Null[i] true means row i's value in Inner is meaningless.
type NullableColumn struct {
	Null  []bool
	Inner Column
}

func (c *NullableColumn) Type() DataType   { return NullableType{Inner: c.Inner.Type()} }
func (c *NullableColumn) RowCount() uint64 { return c.Inner.RowCount() }

// ArrayCounts implements OffsetCarrier by delegating to Inner, so a
// Nullable(Array(...)) column can still participate in shared-substream
// reads.
func (c *NullableColumn) ArrayCounts() []uint64 {
	if oc, ok := c.Inner.(OffsetCarrier); ok {
		return oc.ArrayCounts()
	}
	return nil
}
