package store

import (
	"context"
	"fmt"

	"github.com/roach88/flagsweep/internal/ir"
)

// WriteSweep appends one flushed owner to the journal.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// A different record reusing an existing seq is a constraint violation and returns an error.
//
// The flag snapshot is serialized to canonical JSON.
func (s *Store) WriteSweep(ctx context.Context, rec ir.SweepRecord) error {
	if !rec.Priority.Valid() {
		return fmt.Errorf("write sweep %s: invalid priority %d", rec.ID, int(rec.Priority))
	}

	flagsJSON, err := marshalFlags(rec.Flags)
	if err != nil {
		return fmt.Errorf("write sweep %s: %w", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sweeps
		(id, seq, tick, priority, owner_id, flags, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.Tick,
		rec.Priority.String(),
		rec.OwnerID,
		flagsJSON,
		ir.EngineVersion,
		ir.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write sweep %s: %w", rec.ID, err)
	}

	return nil
}

// WriteSchema records a schema declaration under its content hash and
// returns the hash. Writing the same declaration twice is a no-op.
func (s *Store) WriteSchema(ctx context.Context, spec ir.SchemaSpec) (string, error) {
	hash, err := ir.SchemaHash(spec)
	if err != nil {
		return "", fmt.Errorf("write schema %q: %w", spec.Name, err)
	}

	specJSON, err := marshalSchema(spec)
	if err != nil {
		return "", fmt.Errorf("write schema %q: %w", spec.Name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schemas (hash, name, priority, spec)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, spec.Name, spec.Priority.String(), specJSON)
	if err != nil {
		return "", fmt.Errorf("write schema %q: %w", spec.Name, err)
	}

	return hash, nil
}
