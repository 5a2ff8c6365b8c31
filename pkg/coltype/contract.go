// Package coltype is a small stand-in for the generic column/data-type
// abstraction that a full query engine would own. The storage engine in
// pkg/logstore depends only on the interfaces declared here; it never
// references a concrete type directly.
package coltype

import "io"

// StreamWriter resolves a substream path to the writer the data type should
// serialize that substream's plain (pre-compression) bytes into. It returns
// nil when the substream has already been claimed by an earlier column in
// the current write-block, signalling the data type to skip that substream
// entirely.
type StreamWriter func(path string) io.Writer

// StreamReader resolves a substream path to the reader the data type should
// deserialize that substream's bytes from. It returns nil when the caller
// has already supplied the relevant data out of band (see
// DeserializeOptions.SharedOffsets).
type StreamReader func(path string) io.Reader

// DeserializeOptions carries the per-call instructions a reader gives a
// data type's deserializer. It exists so that two columns sharing a nested
// group's size substream can agree on the row lengths without the second
// column re-reading (and thereby desynchronizing) the shared stream.
type DeserializeOptions struct {
	// ReadOffsets is false when a sibling column already read this
	// column's size substream this block; SharedOffsets then holds the
	// lengths to reuse instead.
	ReadOffsets   bool
	SharedOffsets []uint64
}

// DefaultDeserializeOptions is what a column with no nested-group sharing
// concerns should be deserialized with.
var DefaultDeserializeOptions = DeserializeOptions{ReadOffsets: true}

// OffsetCarrier is implemented by any column that can hand a sibling
// column its per-row element counts, so a reader can satisfy the
// DeserializeOptions.SharedOffsets contract without knowing whether it is
// looking at a plain Array column or a Nullable wrapping one.
type OffsetCarrier interface {
	// ArrayCounts returns the per-row element counts this column was
	// deserialized with, or nil if it carries none.
	ArrayCounts() []uint64
}

// Column is an in-memory, typed, fixed-row-count slice of values.
type Column interface {
	// Type returns the data type that knows how to (de)serialize this
	// column.
	Type() DataType
	// RowCount returns the number of logical rows (for Array columns,
	// the number of arrays, not the number of elements).
	RowCount() uint64
}

// DataType is the capability set the storage engine is polymorphic over.
// Implementations are free to be recursive internally (Array wraps a
// nested DataType) but must present a flat substream enumeration to the
// engine — the engine never walks type structure itself.
type DataType interface {
	// Name identifies the type for diagnostics; it is not used for any
	// on-disk naming decision.
	Name() string

	// IsNullable reports whether this type wraps values in a null bitmap
	// substream.
	IsNullable() bool

	// NestedType returns the type this one wraps (Array's element type,
	// Nullable's underlying type), or nil if this type wraps nothing.
	NestedType() DataType

	// EnumerateStreams returns, in a stable and deterministic order, the
	// substream paths a column named columnName decomposes into.
	EnumerateStreams(columnName string) []string

	// SizesStreamPath returns the substream path carrying this column's
	// element counts and ok=true if this type is (or wraps, for Nullable)
	// an Array; ok=false otherwise. The reader uses this to detect
	// nested-group sharing without knowing about Array specifically.
	SizesStreamPath(columnName string) (path string, ok bool)

	// SerializeBinaryBulkWithMultipleStreams writes col's substreams via
	// get. get returns nil for a substream this call must not write
	// (already handled by a sibling column in the same write-block).
	SerializeBinaryBulkWithMultipleStreams(columnName string, col Column, get StreamWriter) error

	// DeserializeBinaryBulkWithMultipleStreams reads up to rows rows via
	// get, honoring opts for shared nested-group state.
	DeserializeBinaryBulkWithMultipleStreams(columnName string, get StreamReader, rows uint64, opts DeserializeOptions) (Column, error)

	// CreateColumn returns a new, empty column of this type.
	CreateColumn() Column
}
