package engine

import (
	"context"
	"slices"

	"github.com/roach88/flagsweep/internal/ir"
)

// Journal receives one record per flushed owner.
// Implemented by store.Store (SQLite) and MemoryJournal.
type Journal interface {
	WriteSweep(ctx context.Context, rec ir.SweepRecord) error
}

// MemoryJournal keeps sweep records in memory, in write order.
// Used by the test harness and tests.
type MemoryJournal struct {
	records []ir.SweepRecord
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// WriteSweep appends rec.
func (j *MemoryJournal) WriteSweep(_ context.Context, rec ir.SweepRecord) error {
	rec.Flags = slices.Clone(rec.Flags)
	j.records = append(j.records, rec)
	return nil
}

// Records returns a copy of every record written so far.
func (j *MemoryJournal) Records() []ir.SweepRecord {
	return slices.Clone(j.records)
}

// Since returns the records written after the first n.
func (j *MemoryJournal) Since(n int) []ir.SweepRecord {
	if n >= len(j.records) {
		return nil
	}
	return slices.Clone(j.records[n:])
}

// Len returns the number of records written.
func (j *MemoryJournal) Len() int {
	return len(j.records)
}
