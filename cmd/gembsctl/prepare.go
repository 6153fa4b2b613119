package main

import (
	"fmt"
	"strings"

	"github.com/heathsc/gembsctl/pkg/config"
	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/spf13/cobra"
)

// prepareCmd is the minimal stand-in for full CSV/JSON metadata
// ingest: it writes a fresh primary state file directly from
// `--reference`/`--dataset` flags, which the other subcommands then
// read via buildGraph.
var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "initialize the project's state file from reference and dataset flags",
	Long: `prepare writes the project's primary state file from
command-line flags. Full CSV/JSON sample-metadata ingest is out of
scope for this controller; prepare is the minimal loader needed to
exercise the rest of the pipeline end to end.

Example:

  gembsctl prepare --reference ref.fa \
    --dataset id=sample1_lane1,file1=fq/s1_1.fq.gz,file2=fq/s1_2.fq.gz,sample=sample1 \
    --dataset id=sample1_lane2,file1=fq/s1b_1.fq.gz,file2=fq/s1b_2.fq.gz,sample=sample1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workdir, _ := cmd.Flags().GetString("workdir")
		reference, _ := cmd.Flags().GetString("reference")
		datasetSpecs, _ := cmd.Flags().GetStringArray("dataset")
		compress, _ := cmd.Flags().GetBool("compress")

		if reference == "" {
			return fmt.Errorf("gembsctl: --reference is required")
		}
		if len(datasetSpecs) == 0 {
			return fmt.Errorf("gembsctl: at least one --dataset is required")
		}

		store := config.New()
		store.Set(types.SectionIndex, "reference", types.NewStringValue(reference))

		for _, spec := range datasetSpecs {
			id, kv, err := parseDatasetSpec(spec)
			if err != nil {
				return err
			}
			m := make(map[string]types.Value, len(kv))
			for k, v := range kv {
				m[k] = types.NewStringValue(v)
			}
			store.SampleData[id] = m
		}

		if err := config.SaveLocked(statePath(workdir), store, compress); err != nil {
			return err
		}
		fmt.Printf("prepare: wrote state for %d dataset(s) to %s\n", len(datasetSpecs), statePath(workdir))
		return nil
	},
}

func init() {
	prepareCmd.Flags().String("reference", "", "path to the reference FASTA (required)")
	prepareCmd.Flags().StringArray("dataset", nil, "id=...,file1=...[,file2=...][,sample=...] (repeatable)")
	prepareCmd.Flags().Bool("compress", true, "gzip the state file payload")
}

// parseDatasetSpec parses "key=value,key=value,..." into a dataset id
// (the "id" key) and the remaining key/value pairs.
func parseDatasetSpec(spec string) (string, map[string]string, error) {
	kv := make(map[string]string)
	for _, pair := range strings.Split(spec, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return "", nil, fmt.Errorf("gembsctl: malformed --dataset entry %q (want key=value,...)", spec)
		}
		kv[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	id, ok := kv["id"]
	if !ok || id == "" {
		return "", nil, fmt.Errorf("gembsctl: --dataset entry %q missing required id=... key", spec)
	}
	delete(kv, "id")
	return id, kv, nil
}
