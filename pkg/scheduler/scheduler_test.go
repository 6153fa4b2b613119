package scheduler

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/heathsc/gembsctl/pkg/config"
	"github.com/heathsc/gembsctl/pkg/graph"
	"github.com/heathsc/gembsctl/pkg/pipeline"
	"github.com/heathsc/gembsctl/pkg/runtimeconfig"
	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildIndexGraph wires a single supplied reference asset through one
// index task to a single derived output asset; the caller picks the
// binary that runs it through the runtime config's tool override.
func buildIndexGraph(t *testing.T, refPath, outPath string) (*graph.Graph, int) {
	t.Helper()
	g := graph.New()
	ref, err := g.InsertAsset("ref.fa", refPath, types.AssetSupplied)
	require.NoError(t, err)
	out, err := g.InsertAsset("index.gem", outPath, types.AssetDerived)
	require.NoError(t, err)

	taskIdx, err := g.AddTask("index", "build index", types.CmdIndex, nil)
	require.NoError(t, err)
	require.NoError(t, g.AddInputs(taskIdx, ref))
	require.NoError(t, g.AddOutputs(taskIdx, out))
	return g, out
}

func TestRunSchedulesAndCompletesSingleTask(t *testing.T) {
	touchPath, err := exec.LookPath("touch")
	if err != nil {
		t.Skip("touch not available on PATH")
	}

	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(refPath, []byte("x"), 0o644))
	outPath := filepath.Join(dir, "index.gem")

	g, _ := buildIndexGraph(t, refPath, outPath)

	rc, err := runtimeconfig.Load("")
	require.NoError(t, err)
	rc.Tools["index"] = touchPath

	targetIdx := g.AssetByID("index.gem")
	sched := New(Options{
		Graph:        g,
		Store:        config.New(),
		RC:           rc,
		StatePath:    filepath.Join(dir, "project.state"),
		LedgerPath:   filepath.Join(dir, "gemBS_tasks.json"),
		AssetTargets: []int{targetIdx},
		Commands:     map[types.CommandKind]bool{types.CmdIndex: true},
		Workers:      2,
	})

	err = sched.Run()
	assert.ErrorIs(t, err, ErrNoTasks, "the target is satisfied once the task runs, so Run terminates with the empty-success sentinel")
	assert.FileExists(t, outPath)
}

func TestRunEmptyGraphReturnsNoTasksWithoutLedger(t *testing.T) {
	dir := t.TempDir()
	ledgerFile := filepath.Join(dir, "gemBS_tasks.json")

	sched := New(Options{
		Graph:      graph.New(),
		Store:      config.New(),
		StatePath:  filepath.Join(dir, "project.state"),
		LedgerPath: ledgerFile,
		Commands:   map[types.CommandKind]bool{},
		Workers:    1,
	})

	assert.ErrorIs(t, sched.Run(), ErrNoTasks)
	assert.NoFileExists(t, ledgerFile, "an empty run never creates the running ledger")
}

func TestRunReturnsNoTasksWhenTargetAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	donePath := filepath.Join(dir, "done.txt")
	require.NoError(t, os.WriteFile(donePath, []byte("x"), 0o644))

	g := graph.New()
	out, err := g.InsertAsset("done.txt", donePath, types.AssetSupplied)
	require.NoError(t, err)

	sched := New(Options{
		Graph:        g,
		Store:        config.New(),
		StatePath:    filepath.Join(dir, "project.state"),
		LedgerPath:   filepath.Join(dir, "gemBS_tasks.json"),
		AssetTargets: []int{out},
		Commands:     map[types.CommandKind]bool{},
		Workers:      1,
	})

	assert.ErrorIs(t, sched.Run(), ErrNoTasks)
}

func TestRunAbortsOnTaskFailureAndCleansLedger(t *testing.T) {
	falsePath, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available on PATH")
	}

	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(refPath, []byte("x"), 0o644))
	outPath := filepath.Join(dir, "index.gem")

	g, out := buildIndexGraph(t, refPath, outPath)

	rc, err := runtimeconfig.Load("")
	require.NoError(t, err)
	rc.Tools["index"] = falsePath

	ledgerFile := filepath.Join(dir, "gemBS_tasks.json")
	sched := New(Options{
		Graph:        g,
		Store:        config.New(),
		RC:           rc,
		StatePath:    filepath.Join(dir, "project.state"),
		LedgerPath:   ledgerFile,
		AssetTargets: []int{out},
		Commands:     map[types.CommandKind]bool{types.CmdIndex: true},
		Workers:      1,
	})

	err = sched.Run()
	require.Error(t, err)
	var failure *pipeline.Failure
	assert.ErrorAs(t, err, &failure)
	assert.NoFileExists(t, outPath, "the failed pipeline must unlink its expected output")
	assert.NoFileExists(t, ledgerFile, "the failed task's ledger entry is removed on completion")
}

func TestRunReturnsNoTasksReadyWhenSuppliedInputMissing(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "missing-ref.fa")
	outPath := filepath.Join(dir, "index.gem")

	g, out := buildIndexGraph(t, refPath, outPath)

	sched := New(Options{
		Graph:        g,
		Store:        config.New(),
		StatePath:    filepath.Join(dir, "project.state"),
		LedgerPath:   filepath.Join(dir, "gemBS_tasks.json"),
		AssetTargets: []int{out},
		Commands:     map[types.CommandKind]bool{types.CmdIndex: true},
		Workers:      1,
	})

	assert.ErrorIs(t, sched.Run(), ErrNoTasksReady, "a missing, unproducible supplied input leaves the task permanently Waiting rather than hanging forever")
}
