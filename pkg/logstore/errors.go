package logstore

import "errors"

// Sentinel errors for the table descriptor and read/write paths. Callers
// compare with errors.Is; wrapped context is added with fmt.Errorf("%w", ...)
// at each call site rather than by defining new error types.
var (
	// ErrEmptyColumns is returned when a table is constructed with no
	// columns.
	ErrEmptyColumns = errors.New("logstore: table must have at least one column")

	// ErrDuplicateColumn is returned when two columns in a construct call
	// share a name.
	ErrDuplicateColumn = errors.New("logstore: duplicate column name")

	// ErrNoSuchColumn is returned when a read or write names a column the
	// table does not have.
	ErrNoSuchColumn = errors.New("logstore: no such column")

	// ErrInconsistentMarksFile is returned when the marks file's size is
	// not an exact multiple of file_count * sizeof(Mark).
	ErrInconsistentMarksFile = errors.New("logstore: marks file size is inconsistent with file count")

	// ErrLogicalError indicates the descriptor and a data type's
	// substream enumeration disagree, or a write-block produced the wrong
	// number of marks. It is never a user error.
	ErrLogicalError = errors.New("logstore: logical error")
)
