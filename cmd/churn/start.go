package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/churn-dev/churn/internal/config"
	"github.com/churn-dev/churn/internal/events"
	"github.com/churn-dev/churn/internal/journal"
	"github.com/churn-dev/churn/internal/loop"
	"github.com/churn-dev/churn/internal/state"
	"github.com/churn-dev/churn/internal/types"
	"github.com/churn-dev/churn/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new iteration loop",
	Long: `Start a new loop that repeatedly invokes the worker command until an
exit condition fires.

Modes:
  task_loop  Drive a plan of units to completion, or watch for a
             completion keyword when no plan is given
  qa_cycle   Alternate review and fix rounds until a review pass is
             clean at the severity threshold

The worker is an external command: each iteration it receives a JSON
request on stdin and must print a JSON report to stdout before the
timeout.

Examples:
  churn start --worker "python3 worker.py" --keyword DONE
  churn start --plan plan.yml --worker "./agent --step" --max-iterations 25
  churn start --mode qa_cycle --worker "./reviewer" --severity-threshold minor`,
	Run: func(cmd *cobra.Command, args []string) {
		mode, _ := cmd.Flags().GetString("mode")
		planPath, _ := cmd.Flags().GetString("plan")
		quiet, _ := cmd.Flags().GetBool("quiet")

		loopCfg := cfg.LoopConfig()
		if cmd.Flags().Changed("max-iterations") {
			loopCfg.MaxIterations, _ = cmd.Flags().GetInt("max-iterations")
		}
		if cmd.Flags().Changed("keyword") {
			loopCfg.CompletionKeyword, _ = cmd.Flags().GetString("keyword")
		}
		if cmd.Flags().Changed("severity-threshold") {
			s, _ := cmd.Flags().GetString("severity-threshold")
			loopCfg.ExitSeverityThreshold = types.Severity(s)
		}
		if cmd.Flags().Changed("auto-recover") {
			loopCfg.AutoRecover, _ = cmd.Flags().GetBool("auto-recover")
		}
		if cmd.Flags().Changed("timeout") {
			secs, _ := cmd.Flags().GetInt("timeout")
			loopCfg.WorkerTimeout = time.Duration(secs) * time.Second
		}
		if workerFlag, _ := cmd.Flags().GetString("worker"); workerFlag != "" {
			loopCfg.WorkerCommand = strings.Fields(workerFlag)
		}
		if len(loopCfg.WorkerCommand) == 0 {
			fmt.Fprintf(os.Stderr,
				"Error: a worker command is required (--worker, worker_command in %s, or CHURN_WORKER_CMD)\n",
				config.DefaultFileName)
			os.Exit(1)
		}

		var units []types.Unit
		if planPath != "" {
			if types.LoopMode(mode) != types.ModeTaskLoop {
				fmt.Fprintf(os.Stderr, "Error: a plan file only applies to task_loop mode\n")
				os.Exit(1)
			}
			var err error
			units, err = config.LoadPlan(planPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		st, err := loop.NewLoop(types.LoopMode(mode), loopCfg, units)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := store.Save(st); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("Loop %s created (%s, budget %d)\n", cyan(st.ID), st.Mode, st.Config.MaxIterations)
		if len(st.Plan) > 0 {
			fmt.Printf("Plan: %d units from %s\n", len(st.Plan), planPath)
		}
		fmt.Println()

		os.Exit(runLoop(st, quiet, true))
	},
}

func init() {
	startCmd.Flags().StringP("mode", "m", string(types.ModeTaskLoop), "Loop mode: task_loop or qa_cycle")
	startCmd.Flags().StringP("plan", "p", "", "YAML plan file with units to drive (task_loop only)")
	startCmd.Flags().StringP("worker", "w", "", "Worker command to invoke each iteration")
	startCmd.Flags().IntP("max-iterations", "n", 0, "Iteration budget for this loop")
	startCmd.Flags().StringP("keyword", "k", "", "Completion keyword to watch for in worker output")
	startCmd.Flags().String("severity-threshold", "", "qa_cycle exit bar: info, minor, major, or critical")
	startCmd.Flags().Bool("auto-recover", true, "Escalate recovery on failures instead of pausing")
	startCmd.Flags().Int("timeout", 0, "Worker invocation timeout in seconds")
	startCmd.Flags().BoolP("quiet", "q", false, "Suppress per-iteration event output")
	rootCmd.AddCommand(startCmd)
}

// runLoop drives one loop until it completes, pauses, or dies, and
// returns the process exit code. Shared by start and resume.
func runLoop(st *types.LoopState, quiet, created bool) int {
	w, err := worker.NewCommandWorker(worker.CommandConfig{
		Command: st.Config.WorkerCommand,
		Timeout: st.Config.WorkerTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	lock, err := state.AcquireLock(store.Dir(), st.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		_ = lock.Release()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The journal is best-effort history: a failure to open it must not
	// keep the loop from running.
	var sink events.Sink = events.Discard
	j, err := openJournal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: journal unavailable: %v\n", err)
	} else {
		defer j.Close()
		pruneJournal(ctx, j)
		sink = j
	}
	if !quiet {
		sink = events.Multi(sink, events.SinkFunc(func(ev *events.Event) error {
			displayEvent(ev)
			return nil
		}))
	}

	if created {
		_ = sink.Emit(events.New(events.EventTypeLoopCreated, st.ID, 0, events.SeverityInfo,
			fmt.Sprintf("loop created in %s mode with budget %d", st.Mode, st.Config.MaxIterations),
			map[string]interface{}{"mode": string(st.Mode)}))
	}

	ctrl, err := loop.New(loop.Config{Store: store, Worker: w, Sink: sink})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// First Ctrl+C pauses cooperatively at the iteration boundary; the
	// second kills the process the usual way.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s Interrupt received, pausing at the next iteration boundary...\n", yellow("⚠"))
		cancel()
		signal.Stop(sigChan)
	}()

	res, err := ctrl.Run(ctx, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	printRunResult(res)
	return res.Status.ExitCode()
}

// pruneJournal applies the retention policy before a run. Cleanup
// problems are warnings, never fatal.
func pruneJournal(ctx context.Context, j *journal.Journal) {
	rc, err := config.JournalRetentionFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	if !rc.CleanupEnabled {
		return
	}
	if _, err := j.Prune(ctx, journal.RetentionPolicy{
		MaxAge:       rc.RetentionAge(),
		PerLoopLimit: rc.PerLoopLimitEvents,
		GlobalLimit:  rc.GlobalLimitEvents,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: journal cleanup failed: %v\n", err)
	}
}

// printRunResult prints how the run ended, colored by status
func printRunResult(res *loop.RunResult) {
	icon, paint := loopStatusStyle(res.Status)
	fmt.Printf("\n%s Loop %s after %d iterations\n", paint(icon), paint(string(res.Status)), res.IterationsRun)
	fmt.Printf("  %s\n", res.Summary)
	fmt.Printf("  State: %s\n", res.StatePath)
	if res.Status == types.StatusPaused {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("  %s\n", gray("Resume with: churn resume <loop-id>"))
	}
}
