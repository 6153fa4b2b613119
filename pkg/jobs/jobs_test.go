package jobs

import (
	"testing"

	"github.com/heathsc/gembsctl/pkg/config"
	"github.com/heathsc/gembsctl/pkg/graph"
	"github.com/heathsc/gembsctl/pkg/runtimeconfig"
	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMapTask(t *testing.T) (*graph.Graph, int) {
	t.Helper()
	g := graph.New()
	ref, err := g.InsertAsset("ref.fa", "/proj/ref.fa", types.AssetSupplied)
	require.NoError(t, err)
	bam, err := g.InsertAsset("sample1.bam", "/proj/sample1.bam", types.AssetDerived)
	require.NoError(t, err)
	logAsset, err := g.InsertAsset("sample1.map.log", "/proj/logs/sample1.map.log", types.AssetLog)
	require.NoError(t, err)

	taskIdx, err := g.AddTask("map.sample1", "map sample1", types.CmdMap, []string{"-I", "index.gem"})
	require.NoError(t, err)
	require.NoError(t, g.AddInputs(taskIdx, ref))
	require.NoError(t, g.AddOutputs(taskIdx, bam))
	g.SetLog(taskIdx, logAsset)
	return g, taskIdx
}

func TestBuildAppendsConfigOptsAndPaths(t *testing.T) {
	g, taskIdx := buildMapTask(t)
	cfg := config.New()
	cfg.Set(types.SectionMapping, "threads", types.NewIntValue(4))
	cfg.Set(types.SectionMapping, "make_cram", types.NewBoolValue(true))

	rc, err := runtimeconfig.Load("")
	require.NoError(t, err)
	rc.Tools = map[string]string{"map": "/opt/gem/gem-mapper"}

	b := NewBuilder(rc)
	spec, err := b.Build(g, cfg, taskIdx)
	require.NoError(t, err)
	require.Len(t, spec.Stages, 1)

	stage := spec.Stages[0]
	assert.Equal(t, "/opt/gem/gem-mapper", stage.Path)
	assert.Contains(t, stage.Args, "-I")
	assert.Contains(t, stage.Args, "index.gem")
	assert.Contains(t, stage.Args, "--threads")
	assert.Contains(t, stage.Args, "4")
	assert.Contains(t, stage.Args, "--cram")
	assert.Contains(t, stage.Args, "/proj/ref.fa")
	assert.Contains(t, stage.Args, "/proj/sample1.bam")
	assert.Equal(t, []string{"/proj/sample1.bam"}, spec.ExpectedOutputs)
	assert.Equal(t, "/proj/logs/sample1.map.log", spec.StderrLogPath)
}

func TestBuildSkipsUnsetOptsAndFalseBools(t *testing.T) {
	g, taskIdx := buildMapTask(t)
	cfg := config.New()
	cfg.Set(types.SectionMapping, "make_cram", types.NewBoolValue(false))

	b := NewBuilder(nil)
	spec, err := b.Build(g, cfg, taskIdx)
	require.NoError(t, err)
	assert.NotContains(t, spec.Stages[0].Args, "--threads")
	assert.NotContains(t, spec.Stages[0].Args, "--cram")
	assert.Equal(t, "map", spec.Stages[0].Path)
}

func TestBuildDeletesTempInputsOnSuccess(t *testing.T) {
	g := graph.New()
	bam1, err := g.InsertAsset("s1_l1.bam", "/proj/s1_l1.bam", types.AssetTemp)
	require.NoError(t, err)
	bam2, err := g.InsertAsset("s1_l2.bam", "/proj/s1_l2.bam", types.AssetTemp)
	require.NoError(t, err)

	merge, err := g.AddTask("merge_bams_s1", "merge s1", types.CmdMergeBams, nil)
	require.NoError(t, err)
	require.NoError(t, g.AddInputs(merge, bam1, bam2))
	merged, err := g.InsertAsset("s1.bam", "/proj/s1.bam", types.AssetDerived)
	require.NoError(t, err)
	require.NoError(t, g.AddOutputs(merge, merged))

	b := NewBuilder(nil)
	spec, err := b.Build(g, config.New(), merge)
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/s1_l1.bam", "/proj/s1_l2.bam"}, spec.DeleteOnSuccess)
}

func TestBuildKeepLogsDisablesLogRemoval(t *testing.T) {
	g, taskIdx := buildMapTask(t)

	b := NewBuilder(nil)
	spec, err := b.Build(g, config.New(), taskIdx)
	require.NoError(t, err)
	assert.True(t, spec.DeleteLogOnSuccess, "logs are removed after success by default")

	cfg := config.New()
	cfg.Set(types.SectionDefault, "keep_logs", types.NewBoolValue(true))
	spec, err = b.Build(g, cfg, taskIdx)
	require.NoError(t, err)
	assert.False(t, spec.DeleteLogOnSuccess)
}

func TestBuildRejectsOutOfRangeIndex(t *testing.T) {
	g := graph.New()
	b := NewBuilder(nil)
	_, err := b.Build(g, config.New(), 3)
	assert.Error(t, err)
}
