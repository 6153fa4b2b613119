package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/heathsc/gembsctl/pkg/config"
	"github.com/heathsc/gembsctl/pkg/ledger"
	"github.com/heathsc/gembsctl/pkg/lock"
	"github.com/heathsc/gembsctl/pkg/log"
	"github.com/spf13/cobra"
)

// clearCmd recovers a working directory left with stale running-ledger
// entries (after a crash or a kill -9): it removes the partial output
// files of every task still recorded as running, then removes the
// ledger itself. --force removes the ledger file before taking its
// lock, for the case where the previous owner died mid-write.
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "remove stale running-task state, deleting incomplete outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		workdir, _ := cmd.Flags().GetString("workdir")
		force, _ := cmd.Flags().GetBool("force")
		yes, _ := cmd.Flags().GetBool("yes")

		if !yes && !confirmClear() {
			return nil
		}

		lp := ledgerPath(workdir)

		var l *lock.Lock
		var err error
		if force {
			l, err = lock.Force(lp)
		} else {
			l, err = lock.Acquire(lp)
		}
		if err != nil {
			var locked *lock.ErrLocked
			if errors.As(err, &locked) {
				return fmt.Errorf("gembsctl: could not obtain lock (held by %s); if no other process is running on this directory, re-run with --force", locked.Holder)
			}
			return err
		}
		defer l.Close()

		entries, err := ledger.Load(lp)
		if err != nil {
			return err
		}

		if len(entries) > 0 {
			store, err := config.LoadLocked(statePath(workdir))
			if err != nil {
				return err
			}
			g, err := buildGraph(store, workdir)
			if err != nil {
				return err
			}
			lg := log.WithComponent("clear")
			for _, e := range entries {
				tidx := g.TaskByID(e.ID)
				if tidx < 0 {
					lg.Warn().Str("task_id", e.ID).Msg("unknown task in running list")
					continue
				}
				for _, out := range g.Tasks[tidx].Outputs {
					p := g.Assets[out].Path
					if _, serr := os.Stat(p); serr == nil {
						lg.Info().Str("path", p).Msg("removing incomplete output file")
						if rerr := os.Remove(p); rerr != nil {
							lg.Warn().Err(rerr).Str("path", p).Msg("could not remove incomplete output")
						}
					}
				}
			}
		}

		if err := os.Remove(lp); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("gembsctl: removing running ledger: %w", err)
		}
		fmt.Printf("clear: removed running ledger %s\n", lp)
		return nil
	},
}

// confirmClear asks the operator to confirm; clear must not run while
// other controller invocations are active on the same directory.
func confirmClear() bool {
	fmt.Println("Warning: this command must not be run while other gembsctl commands are executing on the same directory.")
	fmt.Print("Enter 'y' to continue: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}

func init() {
	clearCmd.Flags().Bool("force", false, "remove the ledger file before taking its lock (previous owner died mid-run)")
	clearCmd.Flags().Bool("yes", false, "skip the interactive confirmation prompt")
}
