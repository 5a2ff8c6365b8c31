package coltype

import (
	"fmt"
)

// ArrayType is Array(Element). It decomposes into a size substream (the
// per-row element counts) followed by Element's own substreams, flattened
// per spec — the engine never recurses into Element's shape itself.
//
// GroupName lets several sibling columns share a single size substream,
// the mechanism a flattened Nested(...) structure relies on: every member
// column of the same nested group is declared with the same GroupName, so
// EnumerateStreams produces an identical sizeN path for all of them, and
// the descriptor collapses it to one substream file. Level is the nesting
// depth (0 for the outermost array); only level 0 honors GroupName, since
// sharing sizes below the outermost level has no ClickHouse precedent this
// engine needs to support.
type ArrayType struct {
	Element   DataType
	GroupName string
	Level     int
}

func (t ArrayType) Name() string         { return "Array(" + t.Element.Name() + ")" }
func (t ArrayType) IsNullable() bool     { return false }
func (t ArrayType) NestedType() DataType { return t.Element }
func (t ArrayType) CreateColumn() Column {
	return &ArrayColumn{Values: t.Element.CreateColumn()}
}

func (t ArrayType) sizeGroup(columnName string) string {
	if t.Level == 0 && t.GroupName != "" {
		return t.GroupName
	}
	return columnName
}

func (t ArrayType) sizePath(columnName string) string {
	return fmt.Sprintf("%s.size%d", t.sizeGroup(columnName), t.Level)
}

func (t ArrayType) EnumerateStreams(columnName string) []string {
	paths := []string{t.sizePath(columnName)}
	return append(paths, t.Element.EnumerateStreams(columnName)...)
}

func (t ArrayType) SizesStreamPath(columnName string) (string, bool) {
	return t.sizePath(columnName), true
}

func (t ArrayType) SerializeBinaryBulkWithMultipleStreams(columnName string, col Column, get StreamWriter) error {
	ac, ok := col.(*ArrayColumn)
	if !ok {
		return fmt.Errorf("coltype: ArrayType given non-ArrayColumn %T for %q", col, columnName)
	}

	if w := get(t.sizePath(columnName)); w != nil {
		for _, n := range ac.Counts {
			if err := writeUvarint(w, n); err != nil {
				return err
			}
		}
	}

	return t.Element.SerializeBinaryBulkWithMultipleStreams(columnName, ac.Values, get)
}

func (t ArrayType) DeserializeBinaryBulkWithMultipleStreams(columnName string, get StreamReader, rows uint64, opts DeserializeOptions) (Column, error) {
	var counts []uint64
	if opts.ReadOffsets {
		r := get(t.sizePath(columnName))
		if r == nil {
			return nil, fmt.Errorf("coltype: ArrayType got no reader for required substream %q", t.sizePath(columnName))
		}
		counts = make([]uint64, rows)
		for i := range counts {
			n, err := readUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("coltype: decoding size %d of %q: %w", i, columnName, err)
			}
			counts[i] = n
		}
	} else {
		if uint64(len(opts.SharedOffsets)) != rows {
			return nil, fmt.Errorf("coltype: shared offsets for %q have %d rows, want %d", columnName, len(opts.SharedOffsets), rows)
		}
		counts = opts.SharedOffsets
	}

	var total uint64
	for _, n := range counts {
		total += n
	}

	values, err := t.Element.DeserializeBinaryBulkWithMultipleStreams(columnName, get, total, DefaultDeserializeOptions)
	if err != nil {
		return nil, fmt.Errorf("coltype: decoding elements of %q: %w", columnName, err)
	}

	return &ArrayColumn{Counts: counts, Values: values}, nil
}

// ArrayColumn is a fixed block of arrays: Counts[i] elements of Values
// belong to row i, back to back.
type ArrayColumn struct {
	Counts []uint64
	Values Column
}

func (c *ArrayColumn) Type() DataType {
	return ArrayType{Element: c.Values.Type()}
}

func (c *ArrayColumn) RowCount() uint64 { return uint64(len(c.Counts)) }

// ArrayCounts implements OffsetCarrier.
func (c *ArrayColumn) ArrayCounts() []uint64 { return c.Counts }

// NewInt64ArrayColumn builds an ArrayColumn of Int64 rows from plain Go
// slices, the shape test code most often needs.
func NewInt64ArrayColumn(rows [][]int64) *ArrayColumn {
	counts := make([]uint64, len(rows))
	var flat []int64
	for i, row := range rows {
		counts[i] = uint64(len(row))
		flat = append(flat, row...)
	}
	return &ArrayColumn{Counts: counts, Values: &Int64Column{Values: flat}}
}
