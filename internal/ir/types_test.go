package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityNames(t *testing.T) {
	assert.Equal(t, "objects", PriorityObjects.String())
	assert.Equal(t, "perception", PriorityPerception.String())
	assert.False(t, Priority(0).Valid())

	p, err := ParsePriority("PERCEPTION")
	require.NoError(t, err)
	assert.Equal(t, PriorityPerception, p)

	_, err = ParsePriority("lighting")
	assert.Error(t, err)
}

func TestPriorityJSON(t *testing.T) {
	data, err := json.Marshal(SweepRecord{Priority: PriorityObjects, Flags: []string{"redraw"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"priority":"objects"`)

	var rec SweepRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, PriorityObjects, rec.Priority)

	assert.Error(t, json.Unmarshal([]byte(`{"priority":"nope"}`), &rec))
}

func TestDefaultPriorityOrder(t *testing.T) {
	assert.Equal(t, []Priority{PriorityObjects, PriorityPerception}, DefaultPriorityOrder)
}

func TestDescriptorKinds(t *testing.T) {
	alias := FlagDescriptor{Name: "refresh", Kind: FlagAlias, Propagate: []string{"refreshState"}}
	assert.True(t, alias.IsAlias())
	assert.False(t, alias.IsDeprecated())

	legacy := FlagDescriptor{Name: "refreshTiles", Kind: FlagAlias, Deprecation: &Deprecation{Message: "use refreshOcclusion"}}
	assert.True(t, legacy.IsAlias())
	assert.True(t, legacy.IsDeprecated())

	assert.True(t, FlagDeprecated.Valid())
	assert.False(t, FlagKind("hidden").Valid())
}

func TestDeprecationString(t *testing.T) {
	d := Deprecation{Message: "use refreshOcclusion", Since: "11", Until: "13"}
	assert.Equal(t, "use refreshOcclusion (deprecated since 11, removed in 13)", d.String())
	assert.Equal(t, "plain", Deprecation{Message: "plain"}.String())
}

func TestSchemaSpecLookup(t *testing.T) {
	spec := SchemaSpec{Name: "Ruler", Flags: []FlagDescriptor{{Name: "redraw"}, {Name: "refreshLabels"}}}

	d, ok := spec.Lookup("refreshLabels")
	require.True(t, ok)
	assert.Equal(t, "refreshLabels", d.Name)

	_, ok = spec.Lookup("missing")
	assert.False(t, ok)
}

func TestSchemaHash(t *testing.T) {
	a := SchemaSpec{
		Name:     "Ruler",
		Priority: PriorityObjects,
		Flags: []FlagDescriptor{
			{Name: "redraw", Kind: FlagActive, Propagate: []string{"refreshLabels"}},
			{Name: "refreshLabels", Kind: FlagActive},
		},
	}
	h1, err := SchemaHash(a)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, err := SchemaHash(a)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "hash must be stable")

	b := a
	b.Flags = []FlagDescriptor{a.Flags[1], a.Flags[0]}
	h3, err := SchemaHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "declaration order is part of the hash")
}
