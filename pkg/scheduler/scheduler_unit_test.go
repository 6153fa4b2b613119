package scheduler

import (
	"testing"

	"github.com/heathsc/gembsctl/pkg/graph"
	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskCoresDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, taskCores(0))
	assert.Equal(t, 1, taskCores(-3))
	assert.Equal(t, 4, taskCores(4))
}

func buildTwoReadyTasks(t *testing.T) (*graph.Graph, int, int) {
	t.Helper()
	g := graph.New()
	ref, err := g.InsertAsset("ref.fa", "/proj/ref.fa", types.AssetSupplied)
	require.NoError(t, err)

	out1, err := g.InsertAsset("s1.bam", "/proj/s1.bam", types.AssetDerived)
	require.NoError(t, err)
	t1, err := g.AddTask("map.s1", "map s1", types.CmdMap, nil)
	require.NoError(t, err)
	require.NoError(t, g.AddInputs(t1, ref))
	require.NoError(t, g.AddOutputs(t1, out1))
	g.AddCores(t1, 2)
	g.Tasks[t1].Status = types.TaskReady

	out2, err := g.InsertAsset("s2.bam", "/proj/s2.bam", types.AssetDerived)
	require.NoError(t, err)
	t2, err := g.AddTask("map.s2", "map s2", types.CmdMap, nil)
	require.NoError(t, err)
	require.NoError(t, g.AddInputs(t2, ref))
	require.NoError(t, g.AddOutputs(t2, out2))
	g.AddCores(t2, 8)
	g.Tasks[t2].Status = types.TaskReady

	return g, t1, t2
}

func TestChoosePicksLargestFittingRequest(t *testing.T) {
	g, t1, t2 := buildTwoReadyTasks(t)

	idx, ok := choose(g, []int{t1, t2}, 4, -1)
	require.True(t, ok)
	assert.Equal(t, t1, idx, "the 8-core task doesn't fit a 4-core budget, so the 2-core task wins")

	idx, ok = choose(g, []int{t1, t2}, 8, -1)
	require.True(t, ok)
	assert.Equal(t, t2, idx, "both fit, so the larger request wins")
}

func TestChooseRespectsMemoryLimit(t *testing.T) {
	g, t1, t2 := buildTwoReadyTasks(t)
	g.AddMemory(t1, 1<<30)
	g.AddMemory(t2, 1<<31)

	idx, ok := choose(g, []int{t1, t2}, 16, 1<<30)
	require.True(t, ok)
	assert.Equal(t, t1, idx)
}

func TestChooseSkipsNonReadyCandidates(t *testing.T) {
	g, t1, t2 := buildTwoReadyTasks(t)
	g.Tasks[t2].Status = types.TaskRunning

	idx, ok := choose(g, []int{t1, t2}, 16, -1)
	require.True(t, ok)
	assert.Equal(t, t1, idx)
}

func TestChooseReturnsFalseWhenNothingFits(t *testing.T) {
	g, t1, t2 := buildTwoReadyTasks(t)
	_, ok := choose(g, []int{t1, t2}, 1, -1)
	assert.False(t, ok)
}

func TestDetectTotalCoresIsPositive(t *testing.T) {
	assert.Greater(t, DetectTotalCores(), 0)
}

func TestDecideTaskNoTasksWhenPendingEmpty(t *testing.T) {
	_, err := decideTask(graph.New(), nil, nil, 0, 4, -1)
	assert.ErrorIs(t, err, ErrNoTasks)
}

func TestDecideTaskNoTasksReadyWhenLedgerEmpty(t *testing.T) {
	_, err := decideTask(graph.New(), []int{0}, nil, 0, 4, -1)
	assert.ErrorIs(t, err, ErrNoTasksReady)
}

func TestDecideTaskWaitingWhenLedgerNonEmpty(t *testing.T) {
	_, err := decideTask(graph.New(), []int{0}, nil, 2, 4, -1)
	assert.ErrorIs(t, err, errWaitingForTasks)
}

func TestDecideTaskNoSlotsWhenReadyButOverBudget(t *testing.T) {
	g, t1, _ := buildTwoReadyTasks(t)
	_, err := decideTask(g, []int{t1}, []int{t1}, 0, 0, -1)
	assert.ErrorIs(t, err, errNoSlots)
}

func TestDecideTaskPicksReadyCandidate(t *testing.T) {
	g, t1, _ := buildTwoReadyTasks(t)
	idx, err := decideTask(g, []int{t1}, []int{t1}, 0, 4, -1)
	require.NoError(t, err)
	assert.Equal(t, t1, idx)
}
