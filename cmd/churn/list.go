package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/churn-dev/churn/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List loops in the state directory",
	Long: `List every loop checkpointed in the state directory, newest first.

Use --status to narrow the listing, e.g. --status paused to see what
can be resumed.`,
	Run: func(cmd *cobra.Command, args []string) {
		statusFilter, _ := cmd.Flags().GetString("status")
		if statusFilter != "" && !types.LoopStatus(statusFilter).IsValid() {
			fmt.Fprintf(os.Stderr, "Error: invalid status %q\n", statusFilter)
			os.Exit(1)
		}

		loops, err := store.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		shown := 0
		for _, st := range loops {
			if statusFilter != "" && string(st.Status) != statusFilter {
				continue
			}
			icon, paint := loopStatusStyle(st.Status)
			fmt.Printf("%s %-10s %-9s %-24s iter %2d/%-4d %s\n",
				paint(icon), shortLoopID(st.ID), st.Mode, paint(string(st.Status)),
				st.CurrentIteration, st.Config.MaxIterations,
				gray(st.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
			shown++
		}

		if shown == 0 {
			if statusFilter != "" {
				fmt.Printf("%s\n", gray("No "+statusFilter+" loops found"))
			} else {
				fmt.Printf("%s\n", gray("No loops found. Start one with: churn start --worker <cmd>"))
			}
		}
	},
}

func init() {
	listCmd.Flags().StringP("status", "s", "", "Only show loops with this status")
	rootCmd.AddCommand(listCmd)
}
