package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/churn-dev/churn/internal/journal"
	"github.com/churn-dev/churn/internal/state"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the journal event feed",
	Long: `Display recent events from the loop journal and optionally follow
live updates.

The journal records the full lifecycle of every loop: iterations
starting and completing, recovery actions, skipped and replaced units,
stall detection, aborts, and terminal transitions.`,
	Run: func(cmd *cobra.Command, args []string) {
		follow, _ := cmd.Flags().GetBool("follow")
		loopID, _ := cmd.Flags().GetString("loop")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()

		if loopID != "" {
			st, err := state.FindLoop(store, loopID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			loopID = st.ID
		}

		j, err := openJournal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer j.Close()

		if follow {
			runTailFollow(ctx, j, loopID, limit)
		} else {
			runTailOnce(ctx, j, loopID, limit)
		}
	},
}

func init() {
	tailCmd.Flags().BoolP("follow", "f", false, "Follow mode - watch for live updates (Ctrl+C to stop)")
	tailCmd.Flags().StringP("loop", "l", "", "Filter events by loop id (prefixes allowed)")
	tailCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show initially")
	rootCmd.AddCommand(tailCmd)
}

// runTailOnce shows recent events and exits
func runTailOnce(ctx context.Context, j *journal.Journal, loopID string, limit int) {
	evs, err := j.Recent(ctx, journal.Filter{LoopID: loopID, Limit: limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
		os.Exit(1)
	}

	if len(evs) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		if loopID != "" {
			fmt.Printf("%s\n", gray("No events found for loop "+shortLoopID(loopID)))
		} else {
			fmt.Printf("%s\n", gray("No events found"))
		}
		return
	}

	for _, ev := range evs {
		displayEvent(ev)
	}
}

// runTailFollow shows recent events and keeps polling for new ones
func runTailFollow(ctx context.Context, j *journal.Journal, loopID string, initialLimit int) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s Following live updates (Ctrl+C to stop)...\n\n", cyan("●"))

	evs, err := j.Recent(ctx, journal.Filter{LoopID: loopID, Limit: initialLimit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
		os.Exit(1)
	}
	for _, ev := range evs {
		displayEvent(ev)
	}

	var lastTimestamp time.Time
	if len(evs) > 0 {
		lastTimestamp = evs[len(evs)-1].Timestamp
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\nStopped following")
			return
		case <-ticker.C:
			recent, err := j.Recent(ctx, journal.Filter{LoopID: loopID, Limit: 100})
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nError fetching new events: %v\n", err)
				continue
			}
			for _, ev := range recent {
				if !ev.Timestamp.After(lastTimestamp) {
					continue
				}
				displayEvent(ev)
				lastTimestamp = ev.Timestamp
			}
		}
	}
}
