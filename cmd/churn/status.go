package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/churn-dev/churn/internal/state"
	"github.com/churn-dev/churn/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <loop-id>",
	Short: "Show one loop's progress, counters, and plan",
	Long: `Display everything the controller knows about one loop: lifecycle
status, iteration budget usage, failure and stall trackers, the task
plan, open review issues, and the most recent iterations.

Loop ids may be abbreviated to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		st, err := state.FindLoop(store, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOut {
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			return
		}

		printLoopDetail(st)
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print the raw loop state as JSON")
	rootCmd.AddCommand(statusCmd)
}

// printLoopDetail renders the full detail view for one loop
func printLoopDetail(st *types.LoopState) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	icon, paint := loopStatusStyle(st.Status)

	fmt.Printf("\n%s\n\n", cyan("=== Loop "+shortLoopID(st.ID)+" ==="))
	fmt.Printf("  %s %s\n", paint(icon), paint(string(st.Status)))
	fmt.Printf("  ID:         %s\n", st.ID)
	fmt.Printf("  Mode:       %s\n", st.Mode)
	fmt.Printf("  Iteration:  %d of %d\n", st.CurrentIteration, st.Config.MaxIterations)
	fmt.Printf("  Failures:   %d consecutive (budget %d)\n",
		st.ConsecutiveFailures, types.MaxConsecutiveFailures)
	if st.NoProgressCount > 0 {
		fmt.Printf("  Idle:       %d iterations without progress\n", st.NoProgressCount)
	}
	if st.Config.CompletionKeyword != "" {
		fmt.Printf("  Keyword:    %q\n", st.Config.CompletionKeyword)
	}
	if st.Mode == types.ModeQACycle {
		fmt.Printf("  Exit bar:   clean at %s severity and above\n", st.Config.SeverityThreshold())
	}
	if len(st.Config.WorkerCommand) > 0 {
		fmt.Printf("  Worker:     %s\n", strings.Join(st.Config.WorkerCommand, " "))
	}
	if st.ActiveUnit != "" {
		fmt.Printf("  Active:     %s\n", st.ActiveUnit)
	}
	fmt.Printf("  Created:    %s\n", st.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Updated:    %s (%v ago)\n",
		st.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		time.Since(st.UpdatedAt).Round(time.Second))
	if st.Summary != "" {
		fmt.Printf("  Summary:    %s\n", st.Summary)
	}

	if d := st.NextRequest; d != nil {
		fmt.Println()
		fmt.Printf("%s\n", yellow("Pending recovery:"))
		fmt.Printf("  %s %s on unit %s (%s)\n", d.Level, d.Kind, d.Unit, d.Reason)
	}

	if len(st.Plan) > 0 {
		done := 0
		for i := range st.Plan {
			if st.Plan[i].Status == types.UnitDone {
				done++
			}
		}
		fmt.Println()
		fmt.Printf("%s %d/%d done\n", yellow("Plan:"), done, len(st.Plan))
		for _, u := range st.Plan {
			uIcon, uPaint := unitStatusStyle(u.Status)
			line := fmt.Sprintf("  %s %-16s %s", uPaint(uIcon), u.ID, u.Title)
			if len(u.DependsOn) > 0 {
				line += gray(fmt.Sprintf("  (after %s)", strings.Join(u.DependsOn, ", ")))
			}
			if n := st.UnitFailures[u.ID]; n > 0 {
				line += red(fmt.Sprintf("  %d failures", n))
			}
			fmt.Println(line)
		}
	}

	if len(st.OpenIssues) > 0 {
		fmt.Println()
		fmt.Printf("%s %d\n", yellow("Open review issues:"), len(st.OpenIssues))
		for i, issue := range st.OpenIssues {
			if i >= 5 {
				fmt.Printf("  %s\n", gray(fmt.Sprintf("... and %d more", len(st.OpenIssues)-5)))
				break
			}
			fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.File, issue.Message)
		}
	}

	if n := len(st.Iterations); n > 0 {
		fmt.Println()
		fmt.Printf("%s\n", yellow("Recent iterations:"))
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, rec := range st.Iterations[start:] {
			_, oPaint := outcomeStyle(rec.Outcome)
			line := fmt.Sprintf("  #%-3d %-12s %s", rec.Number, oPaint(string(rec.Outcome)),
				rec.Signals.RequestKind)
			if rec.RecoveryLevelApplied != types.RecoveryNone {
				line += fmt.Sprintf("  recovery=%s", rec.RecoveryLevelApplied)
			}
			if len(rec.Signals.Errors) > 0 {
				line += "  " + gray(rec.Signals.Errors[0].Message)
			}
			fmt.Println(line)
		}
	}
	fmt.Println()
}
