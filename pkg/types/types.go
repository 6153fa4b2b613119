package types

import "time"

// AssetType classifies how an asset comes to exist.
type AssetType string

const (
	// AssetSupplied is an external input, never produced by a task.
	AssetSupplied AssetType = "supplied"
	// AssetDerived is produced by exactly one task and kept after the run.
	AssetDerived AssetType = "derived"
	// AssetTemp is derived but safe to delete once its consumers have run.
	AssetTemp AssetType = "temp"
	// AssetLog is produced as a side effect of running a task.
	AssetLog AssetType = "log"
)

// AssetStatus is the filesystem-derived state of an asset.
type AssetStatus string

const (
	AssetPresent    AssetStatus = "present"
	AssetMissing    AssetStatus = "missing"
	AssetOutdated   AssetStatus = "outdated"
	AssetIncomplete AssetStatus = "incomplete"
	AssetDeleted    AssetStatus = "deleted"
)

// Asset is a file artifact known to the graph: either supplied externally
// or produced by exactly one task.
type Asset struct {
	ID    string
	Index int
	Path  string
	Type  AssetType

	// Creator is the index of the task that produces this asset, or -1
	// if Type is AssetSupplied.
	Creator int

	// Parents is the transitive closure of asset indices this asset
	// depends on via its creator's inputs. Always strictly lower index.
	Parents map[int]struct{}

	Status AssetStatus

	// ModTime is the on-disk modification time, zero if missing.
	ModTime time.Time

	// ModTimeAnces is the maximum mtime over this asset and all its
	// ancestors, recomputed by the graph's calcModTimeAnces on every scan.
	ModTimeAnces time.Time

	// hadPresent records whether a previous scan saw this asset present,
	// used to detect the Present -> Deleted transition for derived assets.
	hadPresent bool
}

// HadPresent reports whether the previous status scan observed this
// asset as present on disk.
func (a *Asset) HadPresent() bool { return a.hadPresent }

// SetHadPresent records the present/absent observation of the current
// scan for use by the next one.
func (a *Asset) SetHadPresent(v bool) { a.hadPresent = v }

// CommandKind is the closed set of external-tool invocations a task may
// represent. The core schedules these without understanding their
// genomics semantics.
type CommandKind string

const (
	CmdIndex          CommandKind = "index"
	CmdMap            CommandKind = "map"
	CmdMergeBams      CommandKind = "merge_bams"
	CmdCall           CommandKind = "call"
	CmdMergeBcfs      CommandKind = "merge_bcfs"
	CmdIndexBcf       CommandKind = "index_bcf"
	CmdMergeCallJsons CommandKind = "merge_call_jsons"
	CmdExtract        CommandKind = "extract"
	CmdMapReport      CommandKind = "map_report"
	CmdCallReport     CommandKind = "call_report"
	CmdReport         CommandKind = "report"
	CmdMD5Sum         CommandKind = "md5sum"
)

// TaskStatus is the status engine's derived state for a task.
type TaskStatus string

const (
	TaskWaiting  TaskStatus = "waiting"
	TaskReady    TaskStatus = "ready"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
)

// Resources is a task's advisory resource request.
type Resources struct {
	// Cores is the requested core count; zero means "unset", treated as 1.
	Cores int
	// Memory is the requested memory in bytes; zero means "unset".
	Memory int64
	// Time is an advisory time budget in seconds; zero means unbounded.
	Time int64
}

// Task is a unit of external work consuming input assets and producing
// output assets.
type Task struct {
	ID      string
	Index   int
	Desc    string
	Command CommandKind

	// Args is the pre-split argument token sequence for the command.
	Args []string

	Inputs  []int
	Outputs []int

	// LogAsset is the index of the asset capturing this task's stderr
	// log, or -1 if none.
	LogAsset int

	// Parents is derived automatically as {creator(x) : x in Inputs}.
	Parents map[int]struct{}

	Resources Resources

	Status TaskStatus
}

// RunningEntry is one record in the running-task ledger: a task
// currently executing somewhere among cooperating controller
// instances.
type RunningEntry struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	StartTime int64  `json:"start_time"`
}
