package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsweep/internal/ir"
	"github.com/roach88/flagsweep/internal/pipeline"
)

func spec(flags ...ir.FlagDescriptor) ir.SchemaSpec {
	return ir.SchemaSpec{Name: "S", Priority: ir.PriorityObjects, Flags: flags}
}

func f(name string, propagate ...string) ir.FlagDescriptor {
	return ir.FlagDescriptor{Name: name, Propagate: propagate}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(spec()))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(pipeline.PerceptionSpec()), "perception graph is acyclic")
	assert.Empty(t, AnalyzeCycles(spec(f("a", "b", "c"), f("b", "c"), f("c"))))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	warnings := AnalyzeCycles(spec(f("a", "a")))
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "a"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Equal(t, "S", warnings[0].Schema)
}

func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	warnings := AnalyzeCycles(spec(f("a", "b"), f("b", "a")))
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "a → b → a")
}

func TestAnalyzeCycles_PathFollowsRealEdges(t *testing.T) {
	// a -> b -> c -> a with a shortcut a -> c. Either cycle through a is
	// acceptable as long as every step is a declared edge.
	warnings := AnalyzeCycles(spec(f("a", "c", "b"), f("b", "c"), f("c", "a")))
	require.Len(t, warnings, 1)
	path := warnings[0].Path
	assert.Equal(t, "a", path[0])
	assert.Equal(t, "a", path[len(path)-1])
	for i := 0; i+1 < len(path); i++ {
		assert.Contains(t, []string{"a->c", "a->b", "b->c", "c->a"}, path[i]+"->"+path[i+1])
	}
}

func TestAnalyzeCycles_MultipleCyclesDeterministicOrder(t *testing.T) {
	s := spec(
		f("x", "y"), f("y", "x"),
		f("leaf"),
		f("a", "b"), f("b", "a"),
	)
	for i := 0; i < 10; i++ {
		warnings := AnalyzeCycles(s)
		require.Len(t, warnings, 2)
		assert.Equal(t, "x", warnings[0].Path[0])
		assert.Equal(t, "a", warnings[1].Path[0])
	}
}

func TestAnalyzeCycles_IgnoresResetAndUndeclared(t *testing.T) {
	warnings := AnalyzeCycles(spec(
		ir.FlagDescriptor{Name: "a", Reset: []string{"b"}, Propagate: []string{"ghost"}},
		ir.FlagDescriptor{Name: "b", Reset: []string{"a"}},
	))
	assert.Empty(t, warnings)
}
