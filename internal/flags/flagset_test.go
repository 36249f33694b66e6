package flags

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsweep/internal/ir"
)

func TestFlagSet_SetIsIdempotent(t *testing.T) {
	schema := MustSchema(lightingSpec())
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("refreshLighting"))
	first := fs.Active()
	require.NoError(t, fs.SetFlags("refreshLighting"))

	assert.Equal(t, first, fs.Active())
	assert.Equal(t, 1, fs.Len())
}

func TestFlagSet_PropagationClosure(t *testing.T) {
	schema := MustSchema(lightingSpec())
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("initLighting"))

	assert.Equal(t,
		[]string{"initLighting", "initLightSources", "refreshLighting", "refreshVision"},
		fs.Active())
}

func TestFlagSet_FalseValuesAreNoOps(t *testing.T) {
	schema := MustSchema(lightingSpec())
	fs := NewFlagSet(schema, nil, nil)
	require.NoError(t, fs.SetFlags("refreshVision"))

	require.NoError(t, fs.Set(map[string]bool{"refreshVision": false, "refreshLighting": false}))

	assert.True(t, fs.Has("refreshVision"))
	assert.False(t, fs.Has("refreshLighting"))
	assert.Equal(t, 1, fs.Len())
}

func TestFlagSet_UnknownFlagLeavesSetUntouched(t *testing.T) {
	schema := MustSchema(lightingSpec())
	reg := newFakeRegistrar()
	owner := newTestOwner("o1", schema, reg)

	err := owner.flags.Set(map[string]bool{"refreshLighting": true, "bogus": true})

	require.Error(t, err)
	assert.True(t, IsUnknownFlag(err))
	assert.True(t, owner.flags.Empty())
	assert.Empty(t, reg.priorities("o1"))

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Lighting", ce.Schema)
	assert.Equal(t, "bogus", ce.Flag)
}

func TestFlagSet_ResetOverridesSiblingInSameCall(t *testing.T) {
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Ruler",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: "redraw", Reset: []string{"refreshSegments"}, Propagate: []string{"refreshLabels"}},
			{Name: "refreshSegments"},
			{Name: "refreshLabels"},
		},
	})

	// Map order is random; repeat to exercise both iteration orders.
	for i := 0; i < 20; i++ {
		fs := NewFlagSet(schema, nil, nil)
		require.NoError(t, fs.SetFlags("redraw", "refreshSegments"))
		assert.Equal(t, []string{"redraw", "refreshLabels"}, fs.Active())
	}
}

func TestFlagSet_PropagationAfterResetReactivates(t *testing.T) {
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Chain",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: "f", Reset: []string{"g"}, Propagate: []string{"h"}},
			{Name: "h", Propagate: []string{"g"}},
			{Name: "g"},
		},
	})
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("f"))

	assert.True(t, fs.Has("g"), "g is reset by f, then reached again through h")
	assert.Equal(t, []string{"f", "h", "g"}, fs.Active())
}

func TestFlagSet_SiblingRootsResolveInDeclarationOrder(t *testing.T) {
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Chain",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: "f", Reset: []string{"g"}, Propagate: []string{"h"}},
			{Name: "h", Propagate: []string{"g"}},
			{Name: "g"},
		},
	})

	// g and h carry no resets, so they expand before f; f then resets g and
	// finds h already visited.
	for i := 0; i < 20; i++ {
		fs := NewFlagSet(schema, nil, nil)
		require.NoError(t, fs.SetFlags("g", "h", "f"))
		assert.Equal(t, []string{"f", "h"}, fs.Active())
	}
}

func TestFlagSet_ResetClearsEarlierAssertion(t *testing.T) {
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Ruler",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: "redraw", Reset: []string{"refreshSegments"}},
			{Name: "refreshSegments"},
		},
	})
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("refreshSegments"))
	require.NoError(t, fs.SetFlags("redraw"))

	assert.False(t, fs.Has("refreshSegments"))
	assert.True(t, fs.Has("redraw"))

	// A later assertion re-activates it.
	require.NoError(t, fs.SetFlags("refreshSegments"))
	assert.True(t, fs.Has("refreshSegments"))
}

func TestFlagSet_CycleTerminates(t *testing.T) {
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Loop",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			flag("a", "b"),
			flag("b", "a"),
		},
	})
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("a"))

	assert.Equal(t, []string{"a", "b"}, fs.Active())
}

func TestFlagSet_SelfPropagationTerminates(t *testing.T) {
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Self",
		Priority: ir.PriorityObjects,
		Flags:    []ir.FlagDescriptor{flag("a", "a")},
	})
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("a"))
	assert.Equal(t, []string{"a"}, fs.Active())
}

func TestFlagSet_AliasIsNeverRecorded(t *testing.T) {
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Wall",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			flag("redraw", "refresh"),
			{Name: "refresh", Kind: ir.FlagAlias, Propagate: []string{"refreshState", "refreshLine"}},
			flag("refreshState"),
			flag("refreshLine"),
		},
	})
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("refresh"))
	assert.False(t, fs.Has("refresh"))
	assert.Equal(t, []string{"refreshState", "refreshLine"}, fs.Active())

	require.NoError(t, fs.SetFlags("redraw"))
	assert.Equal(t, []string{"redraw", "refreshState", "refreshLine"}, fs.Active())
	assert.NotContains(t, fs.Clear(), "refresh")
}

func TestFlagSet_DeprecatedFlagWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	warner := captureLogger(&buf)
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Coordinator",
		Priority: ir.PriorityPerception,
		Flags: []ir.FlagDescriptor{
			{
				Name:      "refreshTiles",
				Kind:      ir.FlagDeprecated,
				Propagate: []string{"refreshOcclusion"},
				Deprecation: &ir.Deprecation{
					Message: "use refreshOcclusion",
					Since:   "11",
					Until:   "13",
				},
			},
			flag("refreshOcclusion"),
		},
	}, WithDeprecationLogger(warner))
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("refreshTiles"))
	require.NoError(t, fs.SetFlags("refreshTiles"))
	fs.Clear()
	require.NoError(t, fs.SetFlags("refreshTiles"))

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("deprecated render flag")))
	assert.Contains(t, buf.String(), "flag=refreshTiles")
	assert.Contains(t, buf.String(), "event=flag_deprecated")
	assert.Equal(t, 1, warner.Reported())

	// The deprecated flag itself is still recorded; only aliases are invisible.
	assert.Equal(t, []string{"refreshTiles", "refreshOcclusion"}, fs.Active())
}

func TestFlagSet_DeprecatedAliasPropagatesWithoutRecording(t *testing.T) {
	var buf bytes.Buffer
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Coordinator",
		Priority: ir.PriorityPerception,
		Flags: []ir.FlagDescriptor{
			{
				Name:        "refreshTiles",
				Kind:        ir.FlagAlias,
				Propagate:   []string{"refreshOcclusion"},
				Deprecation: &ir.Deprecation{Message: "use refreshOcclusion"},
			},
			flag("refreshOcclusion"),
		},
	}, WithDeprecationLogger(captureLogger(&buf)))
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("refreshTiles"))

	assert.Equal(t, []string{"refreshOcclusion"}, fs.Active())
	assert.Contains(t, buf.String(), "use refreshOcclusion")
}

func TestFlagSet_Handle(t *testing.T) {
	schema := MustSchema(lightingSpec())
	reg := newFakeRegistrar()
	owner := newTestOwner("o1", schema, reg)

	require.NoError(t, owner.flags.SetFlags("refreshLighting", "refreshVision"))

	handled, err := owner.flags.Handle("refreshLighting")
	require.NoError(t, err)
	assert.True(t, handled)

	handled, err = owner.flags.Handle("refreshLighting")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, []ir.Priority{ir.PriorityPerception}, reg.priorities("o1"))

	handled, err = owner.flags.Handle("refreshVision")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, owner.flags.Empty())
	assert.Empty(t, reg.priorities("o1"))

	_, err = owner.flags.Handle("bogus")
	assert.True(t, IsUnknownFlag(err))
}

func TestFlagSet_ClearReturnsSnapshotAndDeregisters(t *testing.T) {
	schema := MustSchema(lightingSpec())
	reg := newFakeRegistrar()
	owner := newTestOwner("o1", schema, reg)

	require.NoError(t, owner.flags.SetFlags("initLightSources"))
	require.Equal(t, []ir.Priority{ir.PriorityPerception}, reg.priorities("o1"))

	snapshot := owner.flags.Clear()

	assert.Equal(t, map[string]bool{
		"initLightSources": true,
		"refreshLighting":  true,
		"refreshVision":    true,
	}, snapshot)
	assert.True(t, owner.flags.Empty())
	assert.Empty(t, reg.priorities("o1"))

	// Clearing an empty set returns an empty, non-nil map.
	again := owner.flags.Clear()
	assert.NotNil(t, again)
	assert.Empty(t, again)
}

func TestFlagSet_RegistryTracksNonEmptiness(t *testing.T) {
	schema := MustSchema(ir.SchemaSpec{
		Name:     "Ruler",
		Priority: ir.PriorityObjects,
		Flags: []ir.FlagDescriptor{
			{Name: "wipe", Kind: ir.FlagAlias, Reset: []string{"refreshSegments"}},
			flag("refreshSegments"),
		},
	})
	reg := newFakeRegistrar()
	owner := newTestOwner("ruler", schema, reg)

	assert.Empty(t, reg.priorities("ruler"))

	require.NoError(t, owner.flags.SetFlags("refreshSegments"))
	assert.Equal(t, []ir.Priority{ir.PriorityObjects}, reg.priorities("ruler"))

	// An alias reset that empties the set also deregisters.
	require.NoError(t, owner.flags.SetFlags("wipe"))
	assert.True(t, owner.flags.Empty())
	assert.Empty(t, reg.priorities("ruler"))
}

func TestFlagSet_DetachedNeverRegisters(t *testing.T) {
	schema := MustSchema(lightingSpec())
	fs := NewFlagSet(schema, nil, nil)

	require.NoError(t, fs.SetFlags("initLighting"))
	assert.Equal(t, 4, fs.Len())
	assert.Len(t, fs.Clear(), 4)
}

func TestFlagSet_InitLightingScenario(t *testing.T) {
	schema := MustSchema(lightingSpec())
	reg := newFakeRegistrar()
	owner := newTestOwner("perception", schema, reg)

	require.NoError(t, owner.flags.SetFlags("initLighting"))

	assert.Equal(t, map[string]bool{
		"initLighting":     true,
		"initLightSources": true,
		"refreshLighting":  true,
		"refreshVision":    true,
	}, owner.flags.Clear())
	assert.Empty(t, reg.priorities("perception"))
}

func TestFlagSet_Priority(t *testing.T) {
	fs := NewFlagSet(MustSchema(lightingSpec()), nil, nil)
	assert.Equal(t, ir.PriorityPerception, fs.Priority())
	assert.Equal(t, "Lighting", fs.Schema().Name())
}
