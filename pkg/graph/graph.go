package graph

import (
	"fmt"
	"os"

	"github.com/heathsc/gembsctl/pkg/types"
)

// Graph is the asset list and task list together, since neither is
// meaningful without the other's indices.
type Graph struct {
	Assets []*types.Asset
	Tasks  []*types.Task

	assetIdxByID   map[string]int
	assetIdxByPath map[string]int
	taskIdxByID    map[string]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		assetIdxByID:   make(map[string]int),
		assetIdxByPath: make(map[string]int),
		taskIdxByID:    make(map[string]int),
	}
}

// InsertAsset adds a new asset and returns its index. It rejects a
// duplicate id or path.
func (g *Graph) InsertAsset(id, path string, atype types.AssetType) (int, error) {
	if _, ok := g.assetIdxByID[id]; ok {
		return -1, fmt.Errorf("graph: duplicate asset id %q", id)
	}
	if _, ok := g.assetIdxByPath[path]; ok {
		return -1, fmt.Errorf("graph: duplicate asset path %q", path)
	}
	idx := len(g.Assets)
	a := &types.Asset{
		ID:      id,
		Index:   idx,
		Path:    path,
		Type:    atype,
		Creator: -1,
		Parents: make(map[int]struct{}),
		Status:  types.AssetMissing,
	}
	g.Assets = append(g.Assets, a)
	g.assetIdxByID[id] = idx
	g.assetIdxByPath[path] = idx
	return idx, nil
}

// AddTask adds a new task and returns its index.
func (g *Graph) AddTask(id, desc string, command types.CommandKind, args []string) (int, error) {
	if _, ok := g.taskIdxByID[id]; ok {
		return -1, fmt.Errorf("graph: duplicate task id %q", id)
	}
	idx := len(g.Tasks)
	t := &types.Task{
		ID:       id,
		Index:    idx,
		Desc:     desc,
		Command:  command,
		Args:     args,
		LogAsset: -1,
		Parents:  make(map[int]struct{}),
		Status:   types.TaskWaiting,
	}
	g.Tasks = append(g.Tasks, t)
	g.taskIdxByID[id] = idx
	return idx, nil
}

// AddInputs records a task's input assets and derives its parent task
// set as {creator(x) : x in inputs, creator(x) defined}.
func (g *Graph) AddInputs(taskIdx int, assetIdxs ...int) error {
	t := g.Tasks[taskIdx]
	for _, ai := range assetIdxs {
		if ai < 0 || ai >= len(g.Assets) {
			return fmt.Errorf("graph: task %s input asset index %d out of range", t.ID, ai)
		}
		t.Inputs = append(t.Inputs, ai)
		if c := g.Assets[ai].Creator; c >= 0 {
			t.Parents[c] = struct{}{}
		}
	}
	return nil
}

// AddOutputs records a task's output assets, sets each output's
// creator to this task, and rejects an asset already owned by another
// task (no two tasks may share an output).
func (g *Graph) AddOutputs(taskIdx int, assetIdxs ...int) error {
	t := g.Tasks[taskIdx]
	for _, ai := range assetIdxs {
		if ai < 0 || ai >= len(g.Assets) {
			return fmt.Errorf("graph: task %s output asset index %d out of range", t.ID, ai)
		}
		a := g.Assets[ai]
		if a.Creator >= 0 && a.Creator != taskIdx {
			return fmt.Errorf("graph: asset %s already owned by task index %d", a.ID, a.Creator)
		}
		for _, in := range t.Inputs {
			if in >= ai {
				return fmt.Errorf("graph: output %s (idx %d) must have a higher index than task %s's input idx %d", a.ID, ai, t.ID, in)
			}
		}
		a.Creator = taskIdx
		t.Outputs = append(t.Outputs, ai)
		g.setCreatorParents(a, taskIdx)
	}
	return nil
}

// setCreatorParents unions the creator task's parent asset set,
// including the transitive closure, into the output asset's Parents.
func (g *Graph) setCreatorParents(a *types.Asset, taskIdx int) {
	t := g.Tasks[taskIdx]
	for _, in := range t.Inputs {
		a.Parents[in] = struct{}{}
		for p := range g.Assets[in].Parents {
			a.Parents[p] = struct{}{}
		}
	}
}

// SetLog records the asset that captures a task's stderr log.
func (g *Graph) SetLog(taskIdx, assetIdx int) {
	g.Tasks[taskIdx].LogAsset = assetIdx
}

func (g *Graph) AddCores(taskIdx, cores int)        { g.Tasks[taskIdx].Resources.Cores = cores }
func (g *Graph) AddMemory(taskIdx int, bytes int64) { g.Tasks[taskIdx].Resources.Memory = bytes }
func (g *Graph) AddTime(taskIdx int, seconds int64) { g.Tasks[taskIdx].Resources.Time = seconds }

// AssetByID returns an asset's index, or -1 if unknown.
func (g *Graph) AssetByID(id string) int {
	if idx, ok := g.assetIdxByID[id]; ok {
		return idx
	}
	return -1
}

// TaskByID returns a task's index, or -1 if unknown.
func (g *Graph) TaskByID(id string) int {
	if idx, ok := g.taskIdxByID[id]; ok {
		return idx
	}
	return -1
}

// CheckTopology verifies the index ordering: every input of an asset's
// creator task has a lower index than the asset, and every task
// parent edge points to a lower index.
func (g *Graph) CheckTopology() error {
	for _, a := range g.Assets {
		if a.Creator < 0 {
			continue
		}
		t := g.Tasks[a.Creator]
		for _, in := range t.Inputs {
			if in >= a.Index {
				return fmt.Errorf("graph: topology violation: asset %s (idx %d) has input idx %d >= its own index", a.ID, a.Index, in)
			}
		}
	}
	for _, t := range g.Tasks {
		for p := range t.Parents {
			if p >= t.Index {
				return fmt.Errorf("graph: topology violation: task %s (idx %d) has parent idx %d >= its own index", t.ID, t.Index, p)
			}
		}
	}
	return nil
}

// stat is a seam for tests; real use always resolves to os.Stat.
var stat = os.Stat
