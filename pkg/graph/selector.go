package graph

import (
	"sort"

	"github.com/heathsc/gembsctl/pkg/types"
)

// SelectOptions controls the required-task selector.
type SelectOptions struct {
	// Commands is the allowed command-kind filter; a task whose
	// command is absent from this set is never selected.
	Commands map[types.CommandKind]bool
	// IgnoreStatus skips the Complete-task skip and the Ready/Running
	// state filter entirely: every task reachable from the targets is
	// returned regardless of its current status.
	IgnoreStatus bool
}

// RequiredTasks computes the minimal topologically-consistent set of
// task indices needed to bring every asset in targets to Present,
// restricted to Options.Commands.
func RequiredTasks(g *Graph, targets []int, opts SelectOptions) []int {
	collected := collectRequired(g, targets, opts)
	if opts.IgnoreStatus {
		return collected
	}
	return filterReadyOrRunning(g, collected)
}

// PendingTasks returns every not-yet-complete task reachable from
// targets and restricted to commands, without the Ready/Running status
// filter RequiredTasks applies on top. The scheduler uses this to tell
// "nothing left to do" (this set is empty) from "work remains but none
// of it is ready yet" (this set is non-empty but RequiredTasks is
// empty).
func PendingTasks(g *Graph, targets []int, commands map[types.CommandKind]bool) []int {
	return collectRequired(g, targets, SelectOptions{Commands: commands})
}

// collectRequired walks backward from targets along creator/input
// edges, collecting each encountered task once in ascending index
// order. The walk does not continue past an asset that is already
// Present (its creator's inputs are not visited), but that creator is
// still collected like any other; a task already Complete is skipped
// unless IgnoreStatus is set.
func collectRequired(g *Graph, targets []int, opts SelectOptions) []int {
	visited := make(map[int]bool)
	var collected []int

	var visit func(assetIdx int)
	visit = func(assetIdx int) {
		a := g.Assets[assetIdx]
		if a.Creator < 0 {
			return
		}
		t := g.Tasks[a.Creator]
		if a.Status != types.AssetPresent {
			for _, in := range t.Inputs {
				visit(in)
			}
		}
		if opts.Commands[t.Command] && (opts.IgnoreStatus || t.Status != types.TaskComplete) {
			if !visited[t.Index] {
				visited[t.Index] = true
				collected = append(collected, t.Index)
			}
		}
	}

	for _, target := range targets {
		visit(target)
	}

	sort.Ints(collected)
	return collected
}

// filterReadyOrRunning keeps only tasks in state Ready or Running,
// first promoting a Waiting task to Ready wherever every task-parent
// in the candidate set is Complete or Running. A parent that is merely
// promoted-Ready still gates its children: promotion marks "could be
// dispatched this pass", and a child can never run in the same pass as
// its parent.
func filterReadyOrRunning(g *Graph, candidates []int) []int {
	eff := make(map[int]types.TaskStatus, len(candidates))
	for _, idx := range candidates {
		eff[idx] = g.Tasks[idx].Status
	}

	for changed := true; changed; {
		changed = false
		for _, idx := range candidates {
			if eff[idx] != types.TaskWaiting {
				continue
			}
			if len(g.Tasks[idx].Parents) == 0 {
				// Nothing to cascade from: this task's real status
				// already reflects current filesystem reality (it has
				// no upstream task whose just-promoted status could
				// make it stale), so it stays Waiting. Without this it
				// would be vacuously "promoted" by the empty loop
				// below whenever it's blocked on something other than
				// an upstream task - a missing supplied input, say.
				continue
			}
			ready := true
			for p := range g.Tasks[idx].Parents {
				if ps, inSet := eff[p]; inSet {
					if ps != types.TaskComplete && ps != types.TaskRunning {
						ready = false
						break
					}
				}
				// A parent outside the candidate set was already
				// satisfied (that's why the selector never reached
				// it), so it gates nothing here.
			}
			if ready {
				eff[idx] = types.TaskReady
				changed = true
			}
		}
	}

	result := make([]int, 0, len(candidates))
	for _, idx := range candidates {
		switch eff[idx] {
		case types.TaskReady, types.TaskRunning:
			result = append(result, idx)
		}
	}
	return result
}
