package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/churn-dev/churn/internal/state"
	"github.com/churn-dev/churn/internal/types"
)

var abortCmd = &cobra.Command{
	Use:   "abort <loop-id>",
	Short: "Ask a running loop to pause",
	Long: `Signal a running loop to pause at the next iteration boundary.

Aborts are cooperative: the controller finishes the worker invocation
in flight, checkpoints, and pauses. The loop can be resumed later with
'churn resume'.

When no live controller holds the loop (a crash leftover), the state
file is flipped to paused directly so it becomes resumable.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := state.FindLoop(store, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if st.Status.IsTerminal() {
			fmt.Fprintf(os.Stderr, "Error: loop %s is already %s\n", shortLoopID(st.ID), st.Status)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		if state.HolderAlive(store.Dir(), st.ID) {
			if err := store.SignalAbort(st.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Abort requested\n", green("✓"))
			fmt.Printf("  Loop %s will pause at the next iteration boundary\n", shortLoopID(st.ID))
			return
		}

		if st.Status == types.StatusRunning {
			st.Status = types.StatusPaused
			st.Summary = fmt.Sprintf("paused after iteration %d: abort with no live controller",
				st.CurrentIteration)
			if err := store.Save(st); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s No live controller holds loop %s; marked paused\n",
				yellow("⚠"), shortLoopID(st.ID))
			fmt.Printf("  Resume with: churn resume %s\n", shortLoopID(st.ID))
			return
		}

		fmt.Printf("Loop %s is %s; nothing to abort\n", shortLoopID(st.ID), st.Status)
	},
}

func init() {
	rootCmd.AddCommand(abortCmd)
}
