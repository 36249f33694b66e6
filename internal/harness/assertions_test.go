package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsweep/internal/pipeline"
)

func int64Ptr(v int64) *int64 { return &v }

func stageResult(ticks map[int64][]string) *Result {
	r := NewResult()
	for tick := int64(1); tick <= int64(len(ticks)); tick++ {
		for _, name := range ticks[tick] {
			r.AddStageTrace(tick, pipeline.StageCall{Stage: name})
		}
	}
	return r
}

func TestAssertStageOrder(t *testing.T) {
	r := stageResult(map[int64][]string{
		1: {"refreshEdges", "refreshLighting", "refreshSounds"},
		2: {"refreshLighting"},
	})

	assert.NoError(t, assertStageOrder(r, Assertion{Stages: []string{"refreshEdges", "refreshSounds"}}))

	err := assertStageOrder(r, Assertion{Stages: []string{"refreshSounds", "refreshEdges"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refreshSounds (pos 3) should be before refreshEdges (pos 1)")

	err = assertStageOrder(r, Assertion{Stages: []string{"refreshEdges"}, Tick: int64Ptr(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing stage: refreshEdges")
}

func TestAssertStageCount(t *testing.T) {
	r := stageResult(map[int64][]string{
		1: {"refreshLighting"},
		2: {"refreshLighting"},
	})

	assert.NoError(t, assertStageCount(r, Assertion{Stage: "refreshLighting", Count: 2}))
	assert.NoError(t, assertStageCount(r, Assertion{Stage: "refreshLighting", Count: 1, Tick: int64Ptr(2)}))

	err := assertStageCount(r, Assertion{Stage: "refreshEdges", Count: 1})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertStageCount, ae.Type)
	assert.Equal(t, "0 calls", ae.Actual)
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertPending(t *testing.T) {
	r := NewResult()
	assert.NoError(t, assertPending(r, Assertion{}))

	r.Pending = []string{"wall-1", "perception"}
	assert.NoError(t, assertPending(r, Assertion{Owners: []string{"wall-1", "perception"}}))

	err := assertPending(r, Assertion{Owners: []string{"perception", "wall-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending [wall-1 perception]")
}

func TestEvaluateAssertions_SweepNeedsJournal(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertSweepCount},
		{Type: AssertPending},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires journal context")
}
