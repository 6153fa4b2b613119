package graph

import (
	"time"

	"github.com/heathsc/gembsctl/pkg/types"
)

// Scan refreshes asset status from the filesystem plus the set of
// currently-running task ids, propagates modification times along
// parent edges, and then recomputes every task's status. This is
// the single entry point the scheduler calls once per dispatch pass.
func (g *Graph) Scan(runningIDs map[string]struct{}, ignoreTimes bool) {
	g.recheckStatus(runningIDs)
	g.calcModTimeAnces()
	g.markOutdated()
	g.recomputeTaskStatuses(runningIDs, ignoreTimes)
}

// recheckStatus stats every asset. A creator task currently running
// makes its outputs Incomplete regardless of what's on disk: a
// half-written file is not trustworthy. A derived asset that was
// Present on a prior scan and has since vanished becomes Deleted
// rather than Missing, so the selector can tell "never built" from
// "built then removed".
func (g *Graph) recheckStatus(runningIDs map[string]struct{}) {
	for _, a := range g.Assets {
		if a.Creator >= 0 {
			creator := g.Tasks[a.Creator]
			if _, running := runningIDs[creator.ID]; running {
				a.Status = types.AssetIncomplete
				a.SetHadPresent(false)
				continue
			}
		}

		info, err := stat(a.Path)
		present := err == nil
		if present {
			a.ModTime = info.ModTime()
			a.Status = types.AssetPresent
		} else {
			a.ModTime = time.Time{}
			if a.Type != types.AssetSupplied && a.HadPresent() {
				a.Status = types.AssetDeleted
			} else {
				a.Status = types.AssetMissing
			}
		}
		a.SetHadPresent(present)
	}
}

// calcModTimeAnces computes, for each asset in index order, the
// maximum mtime over itself and all ancestors. Index order is
// sufficient because a parent always has a lower index than its
// child (the topology invariant CheckTopology verifies).
func (g *Graph) calcModTimeAnces() {
	for _, a := range g.Assets {
		mta := a.ModTime
		for p := range a.Parents {
			if pa := g.Assets[p].ModTimeAnces; pa.After(mta) {
				mta = pa
			}
		}
		a.ModTimeAnces = mta
	}
}

// markOutdated demotes a Present derived/temp/log asset to Outdated
// when it is older than the latest ancestor that feeds it, so the
// status engine can tell "present but stale" from "present and
// current" without recomputing mtimes itself.
func (g *Graph) markOutdated() {
	for _, a := range g.Assets {
		if a.Status != types.AssetPresent || a.Creator < 0 {
			continue
		}
		for p := range a.Parents {
			if g.Assets[p].ModTimeAnces.After(a.ModTime) {
				a.Status = types.AssetOutdated
				break
			}
		}
	}
}

func assetReadyForInput(status types.AssetStatus, ignoreTimes bool) bool {
	switch status {
	case types.AssetPresent:
		return true
	case types.AssetOutdated, types.AssetDeleted:
		return ignoreTimes
	default:
		return false
	}
}

// assetReadyForOutput excludes Outdated unless mtimes are being
// ignored: a present-but-stale output must force its producer back to
// Ready, so staleness is surfaced as "outputs not ready" rather than
// hidden behind a mod-time comparison the output's own ancestor-max
// would always win. With ignoreTimes on, presence alone decides and
// Outdated counts as present.
func assetReadyForOutput(status types.AssetStatus, ignoreTimes bool) bool {
	switch status {
	case types.AssetPresent, types.AssetIncomplete, types.AssetDeleted:
		return true
	case types.AssetOutdated:
		return ignoreTimes
	default:
		return false
	}
}

// recomputeTaskStatuses applies the task status decision table. A task
// whose id is in the running ledger is always Running, overriding the
// table; a mismatch against what the table would have said is not
// treated as an error, only worth noting to an operator.
func (g *Graph) recomputeTaskStatuses(runningIDs map[string]struct{}, ignoreTimes bool) {
	for _, t := range g.Tasks {
		inputsReady := true
		var latestInputMTA time.Time
		var haveLatest bool
		for _, ai := range t.Inputs {
			a := g.Assets[ai]
			if !assetReadyForInput(a.Status, ignoreTimes) {
				inputsReady = false
			}
			if a.ModTimeAnces.IsZero() {
				continue
			}
			if !haveLatest || a.ModTimeAnces.After(latestInputMTA) {
				latestInputMTA = a.ModTimeAnces
				haveLatest = true
			}
		}

		// firstOutputMTA is the minimum over outputs; a missing file has
		// no mtime and contributes nothing.
		outputsReady := true
		var firstOutputMTA time.Time
		var haveFirst bool
		for _, ao := range t.Outputs {
			a := g.Assets[ao]
			if !assetReadyForOutput(a.Status, ignoreTimes) {
				outputsReady = false
			}
			if a.ModTimeAnces.IsZero() {
				continue
			}
			if !haveFirst || a.ModTimeAnces.Before(firstOutputMTA) {
				firstOutputMTA = a.ModTimeAnces
				haveFirst = true
			}
		}

		var status types.TaskStatus
		switch {
		case ignoreTimes:
			switch {
			case inputsReady && outputsReady:
				status = types.TaskComplete
			case !inputsReady && outputsReady:
				status = types.TaskComplete
			case inputsReady && !outputsReady:
				status = types.TaskReady
			default:
				status = types.TaskWaiting
			}
		default:
			// Either side lacking an mtime altogether decides Complete:
			// never a rebuild based on a comparison against nothing.
			newer := haveLatest && haveFirst && latestInputMTA.After(firstOutputMTA)
			switch {
			case inputsReady && outputsReady && newer:
				status = types.TaskReady
			case inputsReady && outputsReady && !newer:
				status = types.TaskComplete
			case !inputsReady && outputsReady && newer:
				status = types.TaskWaiting
			case !inputsReady && outputsReady && !newer:
				status = types.TaskComplete
			case inputsReady && !outputsReady:
				status = types.TaskReady
			default:
				status = types.TaskWaiting
			}
		}

		if _, running := runningIDs[t.ID]; running {
			status = types.TaskRunning
		}
		t.Status = status
	}
}
