package logstore

import (
	"fmt"
	"sync"
)

// ScanPlan is the result of partitioning a table's row range into
// numStreams contiguous, row-aligned slices (spec.md §4.4). Every Reader
// in Readers may be driven concurrently by a separate goroutine; none of
// them overlaps another's rows.
type ScanPlan struct {
	Readers []*Reader

	release func()
}

// Release must be called exactly once all of ScanPlan's readers are done
// being used. It drops the table's shared lock acquired by Read. Calling
// it more than once is a no-op.
func (p *ScanPlan) Release() {
	if p.release != nil {
		p.release()
	}
}

// Read plans a parallel scan of the given columns (all columns, in their
// table-defined order, if columns is empty) across numStreams readers.
// numStreams is clamped to [1, number of marks]; a table with zero marks
// yields a plan with no readers at all (spec.md §4.4's empty-table case).
//
// The table's shared lock is held from this call until ScanPlan.Release,
// so that no writer can append a block — and thereby shift where a
// planned reader's row range ends — while the plan is in use.
func (d *Descriptor) Read(columns []string, numStreams int, blockSize uint64, maxReadBuffer int) (*ScanPlan, error) {
	if err := d.EnsureMarksLoaded(); err != nil {
		return nil, err
	}

	d.mu.RLock()

	if len(columns) == 0 {
		columns = make([]string, len(d.columns))
		for i, c := range d.columns {
			columns[i] = c.Def.Name
		}
	}
	for _, name := range columns {
		if _, ok := d.columnIdx[name]; !ok {
			d.mu.RUnlock()
			return nil, fmt.Errorf("%w: %q", ErrNoSuchColumn, name)
		}
	}

	rowMarks := d.getMarksForRowCountLocked()
	m := len(rowMarks)

	if m == 0 {
		d.mu.RUnlock()
		return &ScanPlan{release: func() {}}, nil
	}

	if numStreams < 1 {
		numStreams = 1
	}
	if numStreams > m {
		numStreams = m
	}

	plan := &ScanPlan{release: sync.OnceFunc(d.mu.RUnlock)}

	for stream := 0; stream < numStreams; stream++ {
		markBegin := stream * m / numStreams
		markEnd := (stream + 1) * m / numStreams
		if markBegin == markEnd {
			continue
		}

		var rowsBegin uint64
		if markBegin > 0 {
			rowsBegin = rowMarks[markBegin-1].Rows
		}
		rowsEnd := rowMarks[markEnd-1].Rows
		if rowsEnd < rowsBegin {
			plan.release()
			return nil, fmt.Errorf("%w: table %q marks are not rows-monotonic", ErrInconsistentMarksFile, d.name)
		}

		r, err := d.newReaderLocked(columns, markBegin, rowsEnd-rowsBegin, blockSize, maxReadBuffer)
		if err != nil {
			plan.release()
			return nil, err
		}
		plan.Readers = append(plan.Readers, r)
	}

	return plan, nil
}
