package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/flagsweep/internal/ir"
)

// SweepFilter narrows ReadSweeps. Zero fields match everything.
type SweepFilter struct {
	// Tick, when non-nil, selects a single tick.
	Tick *int64
	// Priority selects one sweep class. Zero matches both.
	Priority ir.Priority
	// OwnerID selects one owner.
	OwnerID string
	// Limit caps the number of rows returned. Zero means no limit.
	Limit int
}

// SchemaRow is one recorded schema declaration.
type SchemaRow struct {
	Hash     string
	Name     string
	Priority ir.Priority
}

// ReadSweeps returns journal records matching filter.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadSweeps(ctx context.Context, filter SweepFilter) ([]ir.SweepRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Tick != nil {
		where = append(where, "tick = ?")
		args = append(args, *filter.Tick)
	}
	if filter.Priority != 0 {
		if !filter.Priority.Valid() {
			return nil, fmt.Errorf("read sweeps: invalid priority %d", int(filter.Priority))
		}
		where = append(where, "priority = ?")
		args = append(args, filter.Priority.String())
	}
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}

	query := "SELECT id, seq, tick, priority, owner_id, flags FROM sweeps"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	records := []ir.SweepRecord{}
	for rows.Next() {
		rec, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweeps: %w", err)
	}

	return records, nil
}

// MaxSeq returns the highest seq in the journal, or 0 when it is empty.
// A run appending to an existing journal starts its clock here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM sweeps").Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

// MaxTick returns the highest tick in the journal, or 0 when it is empty.
func (s *Store) MaxTick(ctx context.Context) (int64, error) {
	var tick sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(tick) FROM sweeps").Scan(&tick); err != nil {
		return 0, fmt.Errorf("max tick: %w", err)
	}
	return tick.Int64, nil
}

// CountSweeps returns the number of journal records.
func (s *Store) CountSweeps(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sweeps").Scan(&n); err != nil {
		return 0, fmt.Errorf("count sweeps: %w", err)
	}
	return n, nil
}

// ListSchemas returns recorded schemas ordered by name, then hash.
func (s *Store) ListSchemas(ctx context.Context) ([]SchemaRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, name, priority
		FROM schemas
		ORDER BY name COLLATE BINARY ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()

	out := []SchemaRow{}
	for rows.Next() {
		var (
			row      SchemaRow
			priority string
		)
		if err := rows.Scan(&row.Hash, &row.Name, &priority); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		p, err := ir.ParsePriority(priority)
		if err != nil {
			return nil, fmt.Errorf("scan schema %s: %w", row.Hash, err)
		}
		row.Priority = p
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return out, nil
}

func scanSweep(rows *sql.Rows) (ir.SweepRecord, error) {
	var (
		rec       ir.SweepRecord
		priority  string
		flagsJSON string
	)
	if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Tick, &priority, &rec.OwnerID, &flagsJSON); err != nil {
		return ir.SweepRecord{}, fmt.Errorf("scan sweep: %w", err)
	}

	p, err := ir.ParsePriority(priority)
	if err != nil {
		return ir.SweepRecord{}, fmt.Errorf("scan sweep %s: %w", rec.ID, err)
	}
	rec.Priority = p

	flags, err := unmarshalFlags(flagsJSON)
	if err != nil {
		return ir.SweepRecord{}, fmt.Errorf("scan sweep %s: %w", rec.ID, err)
	}
	rec.Flags = flags

	return rec, nil
}
