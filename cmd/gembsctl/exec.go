package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/heathsc/gembsctl/pkg/config"
	"github.com/heathsc/gembsctl/pkg/graph"
	"github.com/heathsc/gembsctl/pkg/ledger"
	"github.com/heathsc/gembsctl/pkg/lock"
	"github.com/heathsc/gembsctl/pkg/log"
	"github.com/heathsc/gembsctl/pkg/metrics"
	"github.com/heathsc/gembsctl/pkg/runtimeconfig"
	"github.com/heathsc/gembsctl/pkg/scheduler"
	"github.com/heathsc/gembsctl/pkg/signal"
	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/spf13/cobra"
)

// stageOptions is what every stage subcommand (index/map/call/extract/
// report/run) needs to resolve a target asset set and command filter
// and hand them to the scheduler.
type stageOptions struct {
	workdir      string
	ignoreTimes  bool
	ignoreStatus bool
	dryRun       bool
	metricsAddr  string
}

func optionsFromFlags(cmd *cobra.Command) stageOptions {
	workdir, _ := cmd.Flags().GetString("workdir")
	ignoreTimes, _ := cmd.Flags().GetBool("ignore-times")
	ignoreStatus, _ := cmd.Flags().GetBool("ignore-status")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	return stageOptions{
		workdir:      workdir,
		ignoreTimes:  ignoreTimes,
		ignoreStatus: ignoreStatus,
		dryRun:       dryRun,
		metricsAddr:  metricsAddr,
	}
}

// runStage loads the project, builds the graph, resolves the target
// asset set for stage (plus every prerequisite command kind), and
// drives the scheduler to completion.
func runStage(opts stageOptions, stage types.CommandKind, stageName string) error {
	stop := signal.Watch()
	defer stop()

	rc, err := runtimeconfig.Load(runtimeConfigPath(opts.workdir))
	if err != nil {
		return err
	}
	lock.SetTiming(rc.LockPollInterval(), rc.LockTimeout())

	sp := statePath(opts.workdir)
	store, err := config.LoadLocked(sp)
	if err != nil {
		var decodeErr *config.ErrStateDecode
		if errors.As(err, &decodeErr) {
			return fmt.Errorf("gembsctl: %w (refusing to run against a corrupt state file)", err)
		}
		return err
	}

	g, err := buildGraph(store, opts.workdir)
	if err != nil {
		return err
	}

	commands := commandsUpTo(stage)
	targets := targetsForCommand(g, stage)
	if stageName == "run" {
		// `run` brings every terminal artifact current, not just the
		// report chain.
		targets = leafTargets(g)
	}
	targets, err = requireTargets(targets, stageName)
	if err != nil {
		return err
	}

	if opts.dryRun {
		return printDryRun(g, ledgerPath(opts.workdir), targets, commands, opts.ignoreTimes, opts.ignoreStatus)
	}

	if opts.metricsAddr != "" {
		col := metrics.NewCollector(g, ledgerPath(opts.workdir))
		col.Start()
		defer col.Stop()
		go func() {
			if serr := http.ListenAndServe(opts.metricsAddr, metrics.Handler()); serr != nil {
				lg := log.WithComponent("metrics")
				lg.Warn().Err(serr).Msg("metrics endpoint stopped")
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Graph:        g,
		Store:        store,
		RC:           rc,
		StatePath:    sp,
		LedgerPath:   ledgerPath(opts.workdir),
		AssetTargets: targets,
		Commands:     commands,
		IgnoreTimes:  opts.ignoreTimes,
		IgnoreStatus: opts.ignoreStatus,
	})

	err = sched.Run()
	switch {
	case errors.Is(err, scheduler.ErrNoTasks):
		fmt.Println("All targets are present and up to date.")
		return nil
	case errors.Is(err, scheduler.ErrNoTasksReady):
		fmt.Println("No tasks are ready to run; unresolved dependencies remain.")
		return nil
	case errors.Is(err, scheduler.ErrAborted):
		return fmt.Errorf("gembsctl: stopped by signal: %w", err)
	case errors.Is(err, scheduler.ErrSecondSignal):
		return fmt.Errorf("gembsctl: %w", err)
	case err != nil:
		return err
	}
	fmt.Printf("%s: all required tasks completed.\n", stageName)
	return nil
}

// printDryRun reports the tasks the required-task selector would
// dispatch, without running anything - `--dry-run` never touches the
// ledger or the filesystem beyond the read-only graph scan.
func printDryRun(g *graph.Graph, ledgerFile string, targets []int, commands map[types.CommandKind]bool, ignoreTimes, ignoreStatus bool) error {
	entries, err := ledger.Load(ledgerFile)
	if err != nil {
		entries = nil
	}
	g.Scan(ledger.RunningIDs(entries), ignoreTimes)

	required := graph.RequiredTasks(g, targets, graph.SelectOptions{Commands: commands, IgnoreStatus: ignoreStatus})
	if len(required) == 0 {
		fmt.Println("dry-run: nothing ready to run")
		return nil
	}
	fmt.Println("dry-run: would schedule the following tasks:")
	for _, idx := range required {
		t := g.Tasks[idx]
		fmt.Printf("  %-20s %-10s %s\n", t.ID, t.Command, t.Desc)
	}
	return nil
}
