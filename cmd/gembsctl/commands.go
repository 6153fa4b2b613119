package main

import (
	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/spf13/cobra"
)

// Each stage subcommand targets every dataset/sample's outputs for its
// stage - subcommand-specific selectors (barcode, sample, pool) are an
// out-of-scope CLI refinement; `--all` is therefore always this
// package's effective behavior, accepted for interface compatibility
// with the documented flag surface.

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "build the bisulfite reference index",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(optionsFromFlags(cmd), types.CmdIndex, "index")
	},
}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "map reads and merge per-sample BAMs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(optionsFromFlags(cmd), types.CmdMapReport, "map")
	},
}

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "call methylation and genetic variants",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(optionsFromFlags(cmd), types.CmdCallReport, "call")
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "extract per-CpG methylation estimates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(optionsFromFlags(cmd), types.CmdExtract, "extract")
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "build the final project report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(optionsFromFlags(cmd), types.CmdReport, "report")
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run every remaining stage of the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(optionsFromFlags(cmd), types.CmdReport, "run")
	},
}
