package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsweep/internal/ir"
)

func TestWriteSweep_StoresCanonicalFlags(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := sweep("s1", 1, 1, ir.PriorityObjects, "wall-1", "redraw", "refreshState")
	require.NoError(t, s.WriteSweep(ctx, rec))

	var flagsJSON, engineVersion, irVersion, priority string
	err := s.db.QueryRow(
		"SELECT flags, engine_version, ir_version, priority FROM sweeps WHERE id = ?", "s1",
	).Scan(&flagsJSON, &engineVersion, &irVersion, &priority)
	require.NoError(t, err)

	assert.Equal(t, `["redraw","refreshState"]`, flagsJSON)
	assert.Equal(t, ir.EngineVersion, engineVersion)
	assert.Equal(t, ir.IRVersion, irVersion)
	assert.Equal(t, "objects", priority)
}

func TestWriteSweep_NilFlagsStoredAsEmptyArray(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.WriteSweep(context.Background(), sweep("s1", 1, 1, ir.PriorityPerception, "perception")))

	var flagsJSON string
	require.NoError(t, s.db.QueryRow("SELECT flags FROM sweeps").Scan(&flagsJSON))
	assert.Equal(t, "[]", flagsJSON)
}

func TestWriteSweep_DuplicateIDIsIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSweep(ctx, sweep("s1", 1, 1, ir.PriorityObjects, "wall-1", "redraw")))
	require.NoError(t, s.WriteSweep(ctx, sweep("s1", 1, 1, ir.PriorityObjects, "wall-1", "redraw")))

	n, err := s.CountSweeps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteSweep_DuplicateSeqFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSweep(ctx, sweep("s1", 1, 1, ir.PriorityObjects, "wall-1", "redraw")))
	err := s.WriteSweep(ctx, sweep("s2", 1, 1, ir.PriorityObjects, "wall-2", "redraw"))
	assert.Error(t, err)
}

func TestWriteSweep_InvalidPriority(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteSweep(context.Background(), sweep("s1", 1, 1, ir.Priority(9), "x"))
	assert.ErrorContains(t, err, "invalid priority")
}

func TestWriteSchema_ContentAddressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	spec := ir.SchemaSpec{
		Name:     "Wall",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: "redraw", Propagate: []string{"refreshLine"}},
			{Name: "refreshLine"},
		},
	}

	hash, err := s.WriteSchema(ctx, spec)
	require.NoError(t, err)
	want, err := ir.SchemaHash(spec)
	require.NoError(t, err)
	assert.Equal(t, want, hash)

	again, err := s.WriteSchema(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	rows, err := s.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []SchemaRow{{Hash: hash, Name: "Wall", Priority: ir.PriorityObjects}}, rows)

	var stored string
	require.NoError(t, s.db.QueryRow("SELECT spec FROM schemas WHERE hash = ?", hash).Scan(&stored))
	canonical, err := spec.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(canonical), stored)
}
