package jobs

import (
	"fmt"

	"github.com/heathsc/gembsctl/pkg/config"
	"github.com/heathsc/gembsctl/pkg/graph"
	"github.com/heathsc/gembsctl/pkg/pipeline"
	"github.com/heathsc/gembsctl/pkg/runtimeconfig"
	"github.com/heathsc/gembsctl/pkg/types"
)

// optEntry is one row of a command's option table: a config key, the
// flag it maps to, and the Value kind expected to be stored under it.
type optEntry struct {
	key  string
	flag string
	kind types.ValueKind
}

// Builder holds the runtime config (tool paths, thread/memory
// defaults) needed to turn a task into an external process invocation.
type Builder struct {
	RC *runtimeconfig.RuntimeConfig
}

// NewBuilder returns a Builder backed by rc. A nil rc is treated as an
// all-defaults runtime config.
func NewBuilder(rc *runtimeconfig.RuntimeConfig) *Builder {
	if rc == nil {
		rc, _ = runtimeconfig.Load("")
	}
	return &Builder{RC: rc}
}

var (
	indexOpts = []optEntry{
		{"threads", "threads", types.KindInt},
		{"memory", "max-mem", types.KindMemSize},
	}
	mappingOpts = []optEntry{
		{"threads", "threads", types.KindInt},
		{"make_cram", "cram", types.KindBool},
	}
	mergeBamOpts = []optEntry{
		{"merge_threads", "threads", types.KindInt},
	}
	callingOpts = []optEntry{
		{"threads", "threads", types.KindInt},
		{"mapq_threshold", "mapq-threshold", types.KindInt},
		{"haploid", "haploid", types.KindBool},
	}
	mergeBcfOpts = []optEntry{
		{"merge_threads", "threads", types.KindInt},
	}
	extractOpts = []optEntry{
		{"threads", "threads", types.KindInt},
		{"strand_specific", "strand-specific", types.KindBool},
	}
	reportOpts = []optEntry{
		{"project", "project", types.KindString},
	}
)

// appendOpts appends flag tokens for every table entry whose config
// key resolves to a value of the expected kind. Missing keys, absent
// sections, and false bools are silently skipped - this mirrors the
// original's get_config_* lookups, which return None/false rather
// than erroring on an unset knob.
func appendOpts(args []string, cfg *config.Store, sec types.Section, table []optEntry) []string {
	for _, e := range table {
		v, ok := cfg.Get(sec, e.key)
		if !ok || v.Kind != e.kind {
			continue
		}
		switch e.kind {
		case types.KindBool:
			if b, _ := v.AsBool(); b {
				args = append(args, "--"+e.flag)
			}
		case types.KindInt:
			n, _ := v.AsInt()
			args = append(args, "--"+e.flag, fmt.Sprintf("%d", n))
		case types.KindFloat:
			f, _ := v.AsFloat()
			args = append(args, "--"+e.flag, fmt.Sprintf("%g", f))
		case types.KindMemSize:
			n, _ := v.AsMemSize()
			args = append(args, "--"+e.flag, fmt.Sprintf("%d", n))
		case types.KindString:
			s, _ := v.AsString()
			args = append(args, "--"+e.flag, s)
		case types.KindStringVec:
			sv, _ := v.AsStringVec()
			if len(sv) > 0 {
				args = append(args, "--"+e.flag)
				args = append(args, sv...)
			}
		}
	}
	return args
}

// sectionFor returns the config section a command kind reads its
// options from.
func sectionFor(c types.CommandKind) types.Section {
	switch c {
	case types.CmdIndex:
		return types.SectionIndex
	case types.CmdMap, types.CmdMergeBams, types.CmdMapReport:
		return types.SectionMapping
	case types.CmdCall, types.CmdMergeBcfs, types.CmdIndexBcf, types.CmdMergeCallJsons, types.CmdCallReport:
		return types.SectionCalling
	case types.CmdExtract:
		return types.SectionExtract
	case types.CmdReport:
		return types.SectionReport
	case types.CmdMD5Sum:
		return types.SectionMD5Sum
	default:
		return types.SectionDefault
	}
}

// optTableFor returns the option table a command kind draws its
// config-derived flags from, or nil for commands with no tunable
// knobs (MD5Sum, MergeCallJsons).
func optTableFor(c types.CommandKind) []optEntry {
	switch c {
	case types.CmdIndex:
		return indexOpts
	case types.CmdMap:
		return mappingOpts
	case types.CmdMergeBams:
		return mergeBamOpts
	case types.CmdCall:
		return callingOpts
	case types.CmdMergeBcfs, types.CmdIndexBcf:
		return mergeBcfOpts
	case types.CmdExtract:
		return extractOpts
	case types.CmdMapReport, types.CmdCallReport, types.CmdReport:
		return reportOpts
	default:
		return nil
	}
}

// Build assembles the pipeline.Spec for the task at taskIdx: tool path
// from the runtime config, argv from the task's pre-split tokens plus
// config-derived flags, inputs/outputs resolved to filesystem paths,
// and a shared stderr log when the task has a log asset.
func (b *Builder) Build(g *graph.Graph, cfg *config.Store, taskIdx int) (*pipeline.Spec, error) {
	if taskIdx < 0 || taskIdx >= len(g.Tasks) {
		return nil, fmt.Errorf("jobs: task index %d out of range", taskIdx)
	}
	task := g.Tasks[taskIdx]

	args := append([]string{}, task.Args...)
	args = appendOpts(args, cfg, sectionFor(task.Command), optTableFor(task.Command))

	// Temp-typed inputs are consumed by this task: once it succeeds
	// they have no further reader and are removed (per-dataset BAMs
	// after a per-sample merge, for instance).
	var deleteOnSuccess []string
	for _, in := range task.Inputs {
		a := g.Assets[in]
		args = append(args, a.Path)
		if a.Type == types.AssetTemp {
			deleteOnSuccess = append(deleteOnSuccess, a.Path)
		}
	}

	outputs := make([]string, 0, len(task.Outputs))
	for _, out := range task.Outputs {
		outputs = append(outputs, g.Assets[out].Path)
	}
	args = append(args, outputs...)

	spec := &pipeline.Spec{
		Stages: []pipeline.Stage{{
			Path: b.RC.ToolPath(task.Command),
			Args: args,
		}},
		OutputMode:      pipeline.OutputDiscard,
		ExpectedOutputs: outputs,
		DeleteOnSuccess: deleteOnSuccess,
	}

	if task.LogAsset >= 0 {
		spec.StderrLogPath = g.Assets[task.LogAsset].Path
		spec.DeleteLogOnSuccess = !keepLogs(cfg)
	}

	return spec, nil
}

// keepLogs reports whether the project asked to retain per-task stderr
// logs after a successful run; the default is to remove them.
func keepLogs(cfg *config.Store) bool {
	v, ok := cfg.Get(types.SectionDefault, "keep_logs")
	if !ok {
		return false
	}
	b, _ := v.AsBool()
	return b
}
