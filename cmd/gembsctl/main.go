// Command gembsctl is the CLI entry point: it wires the
// prepare|index|map|call|extract|report|run|clear subcommands to
// (target-asset-set, command-filter) pairs handed to the selector
// (pkg/graph) and scheduler (pkg/scheduler). Config-file lexing and
// full CSV/JSON metadata ingest are out of scope; this package's
// project.go supplies a minimal stand-in loader sufficient to drive
// the graph/scheduler end to end.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/heathsc/gembsctl/pkg/log"
	"github.com/heathsc/gembsctl/pkg/scheduler"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"
)

// Exit codes: 0 success, 1 any fatal error, 2 cooperative cancellation,
// 3 a second signal cut the shutdown drain short.
const (
	exitError        = 1
	exitSignal       = 2
	exitSecondSignal = 3
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch {
		case errors.Is(err, scheduler.ErrSecondSignal):
			os.Exit(exitSecondSignal)
		case errors.Is(err, scheduler.ErrAborted):
			os.Exit(exitSignal)
		default:
			os.Exit(exitError)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "gembsctl",
	Short: "gembsctl - whole-genome bisulfite sequencing pipeline controller",
	Long: `gembsctl drives a fixed set of external bioinformatics tools
(indexer, mapper, variant caller, extractor) through a staged pipeline:
index -> map -> merge -> call -> merge -> extract -> report.

It is a dependency-driven task scheduler: multiple concurrent
invocations cooperate safely on a shared working directory through an
advisory file lock and an on-disk running-task ledger.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("workdir", ".", "project working directory")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().Bool("ignore-times", false, "treat a task as complete once its outputs exist, regardless of mtimes")
	rootCmd.PersistentFlags().Bool("ignore-status", false, "select every task reachable from the targets, regardless of current status")
	rootCmd.PersistentFlags().Bool("all", false, "target every dataset/sample (always the effective behavior; accepted for compatibility)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "print the tasks that would run without executing them")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address for the duration of the run (empty = disabled)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(clearCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOut,
	})
}
