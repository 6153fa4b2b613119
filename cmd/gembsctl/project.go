package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/heathsc/gembsctl/pkg/config"
	"github.com/heathsc/gembsctl/pkg/graph"
	"github.com/heathsc/gembsctl/pkg/types"
)

// sampleDataStr reads a string-valued sample metadata key, returning
// "" when the dataset or key is absent.
func sampleDataStr(store *config.Store, dataset, key string) string {
	m, ok := store.SampleData[dataset]
	if !ok {
		return ""
	}
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.AsString()
	return s
}

// datasetIDs returns the project's dataset ids in deterministic order.
func datasetIDs(store *config.Store) []string {
	ids := make([]string, 0, len(store.SampleData))
	for id := range store.SampleData {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sampleOf returns the sample a dataset belongs to, defaulting to the
// dataset id itself when no "sample" key was recorded - the common
// case of one dataset per sample.
func sampleOf(store *config.Store, dataset string) string {
	if s := sampleDataStr(store, dataset, "sample"); s != "" {
		return s
	}
	return dataset
}

// buildGraph constructs the in-memory asset/task graph from the
// project's persisted sample metadata. Full CSV/JSON metadata ingest
// is out of scope; this stand-in walks store.SampleData directly,
// which `prepare` is responsible for populating.
//
// The chain built per dataset/sample mirrors the staged pipeline
// (index -> map -> merge -> call -> merge -> extract -> report) and
// exercises every command kind.
func buildGraph(store *config.Store, workdir string) (*graph.Graph, error) {
	g := graph.New()

	refPath := "reference.fa"
	if v, ok := store.Get(types.SectionIndex, "reference"); ok {
		if s, sok := v.AsString(); sok {
			refPath = s
		}
	}
	refIdx, err := g.InsertAsset("reference", abs(workdir, refPath), types.AssetSupplied)
	if err != nil {
		return nil, err
	}

	indexTask, err := g.AddTask("index", "build bisulfite index", types.CmdIndex, nil)
	if err != nil {
		return nil, err
	}
	if err := g.AddInputs(indexTask, refIdx); err != nil {
		return nil, err
	}
	indexAsset, err := g.InsertAsset("index", abs(workdir, filepath.Join(gemBSDir, "index.bs")), types.AssetDerived)
	if err != nil {
		return nil, err
	}
	if err := g.AddOutputs(indexTask, indexAsset); err != nil {
		return nil, err
	}
	indexLog, err := g.InsertAsset("index.log", abs(workdir, filepath.Join(gemBSDir, "logs", "index.log")), types.AssetLog)
	if err != nil {
		return nil, err
	}
	g.SetLog(indexTask, indexLog)

	ids := datasetIDs(store)
	bamBySample := make(map[string][]int)

	// A sample mapped from several datasets gets per-dataset BAMs that
	// only exist to be merged: those are temp assets, removed once the
	// merge succeeds. A single-dataset sample's BAM is the merge result
	// itself and stays derived.
	datasetsPerSample := make(map[string]int)
	for _, dataset := range ids {
		datasetsPerSample[sampleOf(store, dataset)]++
	}

	for _, dataset := range ids {
		file1 := sampleDataStr(store, dataset, "file1")
		if file1 == "" {
			file1 = filepath.Join("fastq", dataset+"_1.fq.gz")
		}
		fq1, err := g.InsertAsset(dataset+"_1", abs(workdir, file1), types.AssetSupplied)
		if err != nil {
			return nil, err
		}

		mapInputs := []int{indexAsset, fq1}
		if file2 := sampleDataStr(store, dataset, "file2"); file2 != "" {
			fq2, err := g.InsertAsset(dataset+"_2", abs(workdir, file2), types.AssetSupplied)
			if err != nil {
				return nil, err
			}
			mapInputs = append(mapInputs, fq2)
		}

		mapTask, err := g.AddTask("map_"+dataset, "map "+dataset, types.CmdMap, []string{dataset})
		if err != nil {
			return nil, err
		}
		if err := g.AddInputs(mapTask, mapInputs...); err != nil {
			return nil, err
		}
		bamType := types.AssetDerived
		if datasetsPerSample[sampleOf(store, dataset)] > 1 {
			bamType = types.AssetTemp
		}
		bamAsset, err := g.InsertAsset(dataset+".bam", abs(workdir, filepath.Join("mapped", dataset+".bam")), bamType)
		if err != nil {
			return nil, err
		}
		if err := g.AddOutputs(mapTask, bamAsset); err != nil {
			return nil, err
		}
		mapLog, err := g.InsertAsset("map_"+dataset+".log", abs(workdir, filepath.Join(gemBSDir, "logs", "map_"+dataset+".log")), types.AssetLog)
		if err != nil {
			return nil, err
		}
		g.SetLog(mapTask, mapLog)

		sample := sampleOf(store, dataset)
		bamBySample[sample] = append(bamBySample[sample], bamAsset)
	}

	samples := make([]string, 0, len(bamBySample))
	for s := range bamBySample {
		samples = append(samples, s)
	}
	sort.Strings(samples)

	var projectBcfs []int
	var projectJSONs []int

	for _, sample := range samples {
		bams := bamBySample[sample]

		// A single-dataset sample needs no merge: its map output is the
		// sample BAM. Multi-dataset samples merge their temp BAMs into
		// the durable per-sample BAM.
		mergedBam := bams[0]
		if len(bams) > 1 {
			mergeTask, err := g.AddTask("merge_bams_"+sample, "merge bams for "+sample, types.CmdMergeBams, nil)
			if err != nil {
				return nil, err
			}
			if err := g.AddInputs(mergeTask, bams...); err != nil {
				return nil, err
			}
			mergedBam, err = g.InsertAsset(sample+".merged.bam", abs(workdir, filepath.Join("mapped", sample+".bam")), types.AssetDerived)
			if err != nil {
				return nil, err
			}
			if err := g.AddOutputs(mergeTask, mergedBam); err != nil {
				return nil, err
			}
		}

		md5Task, err := g.AddTask("md5_"+sample, "checksum "+sample+"'s bam", types.CmdMD5Sum, nil)
		if err != nil {
			return nil, err
		}
		if err := g.AddInputs(md5Task, mergedBam); err != nil {
			return nil, err
		}
		md5Asset, err := g.InsertAsset(sample+".bam.md5", g.Assets[mergedBam].Path+".md5", types.AssetDerived)
		if err != nil {
			return nil, err
		}
		if err := g.AddOutputs(md5Task, md5Asset); err != nil {
			return nil, err
		}

		mapReportTask, err := g.AddTask("map_report_"+sample, "mapping report for "+sample, types.CmdMapReport, nil)
		if err != nil {
			return nil, err
		}
		if err := g.AddInputs(mapReportTask, mergedBam); err != nil {
			return nil, err
		}
		mapReportAsset, err := g.InsertAsset(sample+".map_report.html", abs(workdir, filepath.Join("report", sample+"_map.html")), types.AssetDerived)
		if err != nil {
			return nil, err
		}
		if err := g.AddOutputs(mapReportTask, mapReportAsset); err != nil {
			return nil, err
		}

		callTask, err := g.AddTask("call_"+sample, "call variants for "+sample, types.CmdCall, nil)
		if err != nil {
			return nil, err
		}
		if err := g.AddInputs(callTask, mergedBam); err != nil {
			return nil, err
		}
		bcfAsset, err := g.InsertAsset(sample+".bcf", abs(workdir, filepath.Join("calls", sample+".bcf")), types.AssetDerived)
		if err != nil {
			return nil, err
		}
		jsonAsset, err := g.InsertAsset(sample+".json", abs(workdir, filepath.Join("calls", sample+".json")), types.AssetDerived)
		if err != nil {
			return nil, err
		}
		if err := g.AddOutputs(callTask, bcfAsset, jsonAsset); err != nil {
			return nil, err
		}
		callLog, err := g.InsertAsset("call_"+sample+".log", abs(workdir, filepath.Join(gemBSDir, "logs", "call_"+sample+".log")), types.AssetLog)
		if err != nil {
			return nil, err
		}
		g.SetLog(callTask, callLog)

		indexBcfTask, err := g.AddTask("index_bcf_"+sample, "index bcf for "+sample, types.CmdIndexBcf, nil)
		if err != nil {
			return nil, err
		}
		if err := g.AddInputs(indexBcfTask, bcfAsset); err != nil {
			return nil, err
		}
		bcfIdxAsset, err := g.InsertAsset(sample+".bcf.csi", abs(workdir, filepath.Join("calls", sample+".bcf.csi")), types.AssetDerived)
		if err != nil {
			return nil, err
		}
		if err := g.AddOutputs(indexBcfTask, bcfIdxAsset); err != nil {
			return nil, err
		}

		callReportTask, err := g.AddTask("call_report_"+sample, "calling report for "+sample, types.CmdCallReport, nil)
		if err != nil {
			return nil, err
		}
		if err := g.AddInputs(callReportTask, bcfIdxAsset); err != nil {
			return nil, err
		}
		callReportAsset, err := g.InsertAsset(sample+".call_report.html", abs(workdir, filepath.Join("report", sample+"_call.html")), types.AssetDerived)
		if err != nil {
			return nil, err
		}
		if err := g.AddOutputs(callReportTask, callReportAsset); err != nil {
			return nil, err
		}

		projectBcfs = append(projectBcfs, bcfIdxAsset)
		projectJSONs = append(projectJSONs, jsonAsset)
	}

	if len(projectBcfs) == 0 {
		return g, nil
	}

	mergeJSONTask, err := g.AddTask("merge_call_jsons", "merge per-sample calling stats", types.CmdMergeCallJsons, nil)
	if err != nil {
		return nil, err
	}
	if err := g.AddInputs(mergeJSONTask, projectJSONs...); err != nil {
		return nil, err
	}
	projectJSONAsset, err := g.InsertAsset("project.json", abs(workdir, filepath.Join("calls", "project.json")), types.AssetDerived)
	if err != nil {
		return nil, err
	}
	if err := g.AddOutputs(mergeJSONTask, projectJSONAsset); err != nil {
		return nil, err
	}

	mergeBcfTask, err := g.AddTask("merge_bcfs", "merge per-sample bcfs", types.CmdMergeBcfs, nil)
	if err != nil {
		return nil, err
	}
	if err := g.AddInputs(mergeBcfTask, projectBcfs...); err != nil {
		return nil, err
	}
	projectBcfAsset, err := g.InsertAsset("project.bcf", abs(workdir, filepath.Join("calls", "project.bcf")), types.AssetDerived)
	if err != nil {
		return nil, err
	}
	if err := g.AddOutputs(mergeBcfTask, projectBcfAsset); err != nil {
		return nil, err
	}

	extractTask, err := g.AddTask("extract", "extract per-CpG methylation calls", types.CmdExtract, nil)
	if err != nil {
		return nil, err
	}
	if err := g.AddInputs(extractTask, projectBcfAsset); err != nil {
		return nil, err
	}
	extractAsset, err := g.InsertAsset("project.extract", abs(workdir, filepath.Join("extract", "project.cpg.txt")), types.AssetDerived)
	if err != nil {
		return nil, err
	}
	if err := g.AddOutputs(extractTask, extractAsset); err != nil {
		return nil, err
	}
	extractLog, err := g.InsertAsset("extract.log", abs(workdir, filepath.Join(gemBSDir, "logs", "extract.log")), types.AssetLog)
	if err != nil {
		return nil, err
	}
	g.SetLog(extractTask, extractLog)

	reportTask, err := g.AddTask("report", "build final project report", types.CmdReport, nil)
	if err != nil {
		return nil, err
	}
	if err := g.AddInputs(reportTask, extractAsset, projectJSONAsset); err != nil {
		return nil, err
	}
	reportAsset, err := g.InsertAsset("project.report", abs(workdir, filepath.Join("report", "project.html")), types.AssetDerived)
	if err != nil {
		return nil, err
	}
	if err := g.AddOutputs(reportTask, reportAsset); err != nil {
		return nil, err
	}

	return g, nil
}

func abs(workdir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workdir, p)
}

// commandsUpTo returns the cumulative command-kind filter a subcommand
// needs: every kind feeding its named stage plus the stage itself, so
// the selector (pkg/graph's RequiredTasks) schedules prerequisite
// stages automatically rather than only the named one.
func commandsUpTo(stage types.CommandKind) map[types.CommandKind]bool {
	order := []types.CommandKind{
		types.CmdIndex,
		types.CmdMap,
		types.CmdMD5Sum,
		types.CmdMergeBams,
		types.CmdMapReport,
		types.CmdCall,
		types.CmdIndexBcf,
		types.CmdCallReport,
		types.CmdMergeCallJsons,
		types.CmdMergeBcfs,
		types.CmdExtract,
		types.CmdReport,
	}
	set := make(map[types.CommandKind]bool)
	for _, k := range order {
		set[k] = true
		if k == stage {
			break
		}
	}
	return set
}

// targetsForCommand returns every asset produced by a task of the
// given command kind - the natural target set for a subcommand that
// asks to bring that stage's outputs up to date.
func targetsForCommand(g *graph.Graph, kind types.CommandKind) []int {
	var targets []int
	for _, t := range g.Tasks {
		if t.Command == kind {
			targets = append(targets, t.Outputs...)
		}
	}
	return targets
}

// leafTargets returns every derived asset no task consumes - the
// target set for `run`, which brings the whole project current
// (including side outputs like checksums that no later stage reads).
func leafTargets(g *graph.Graph) []int {
	consumed := make(map[int]bool)
	for _, t := range g.Tasks {
		for _, in := range t.Inputs {
			consumed[in] = true
		}
	}
	var targets []int
	for _, a := range g.Assets {
		if a.Creator >= 0 && a.Type != types.AssetLog && !consumed[a.Index] {
			targets = append(targets, a.Index)
		}
	}
	return targets
}

func requireTargets(targets []int, stage string) ([]int, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("gembsctl: no %s targets in this project (has `prepare` been run?)", stage)
	}
	return targets, nil
}
