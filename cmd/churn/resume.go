package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/churn-dev/churn/internal/state"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <loop-id>",
	Short: "Resume a paused loop from its checkpoint",
	Long: `Resume a paused loop from its last checkpoint.

The loop re-enters exactly where it paused: iteration counters, the
failure and stall trackers, plan progress, open review issues, and any
pending recovery directive are restored from the state file.

The worker command recorded at loop creation is reused by default;
--worker overrides it for this run onward. Loop ids may be abbreviated
to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		quiet, _ := cmd.Flags().GetBool("quiet")

		found, err := state.FindLoop(store, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		st, err := store.Resume(found.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if workerFlag, _ := cmd.Flags().GetString("worker"); workerFlag != "" {
			st.Config.WorkerCommand = strings.Fields(workerFlag)
		}
		if cmd.Flags().Changed("timeout") {
			secs, _ := cmd.Flags().GetInt("timeout")
			st.Config.WorkerTimeout = time.Duration(secs) * time.Second
		}
		if len(st.Config.WorkerCommand) == 0 {
			fmt.Fprintf(os.Stderr, "Error: loop %s has no worker command recorded; pass --worker\n", st.ID)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("Resuming loop %s at iteration %d of %d\n\n",
			cyan(st.ID), st.CurrentIteration+1, st.Config.MaxIterations)

		os.Exit(runLoop(st, quiet, false))
	},
}

func init() {
	resumeCmd.Flags().StringP("worker", "w", "", "Override the recorded worker command")
	resumeCmd.Flags().Int("timeout", 0, "Override the worker timeout in seconds")
	resumeCmd.Flags().BoolP("quiet", "q", false, "Suppress per-iteration event output")
	rootCmd.AddCommand(resumeCmd)
}
