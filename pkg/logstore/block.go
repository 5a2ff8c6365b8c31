package logstore

import "logstore/pkg/coltype"

// Block is an in-memory set of named, typed columns with equal row counts:
// the unit of both write and read (spec.md glossary).
type Block struct {
	ColumnNames []string
	Columns     []coltype.Column
}

// NumRows returns the row count shared by every column of the block, or 0
// for an empty block.
func (b *Block) NumRows() uint64 {
	if len(b.Columns) == 0 {
		return 0
	}
	return b.Columns[0].RowCount()
}
