// scripts/cleanup-stale.go - Manual stale loop cleanup tool
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/churn-dev/churn/internal/config"
	"github.com/churn-dev/churn/internal/journal"
	"github.com/churn-dev/churn/internal/state"
	"github.com/churn-dev/churn/internal/types"
)

func main() {
	ctx := context.Background()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scanning state directory: %s\n", cfg.StateDir)

	store, err := state.NewFileStore(cfg.StateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening state store: %v\n", err)
		os.Exit(1)
	}

	loops, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing loops: %v\n", err)
		os.Exit(1)
	}

	// A loop still marked running whose lock has no live holder is a
	// crash leftover; flip it to paused so it becomes resumable.
	cleaned := 0
	for _, st := range loops {
		if st.Status != types.StatusRunning {
			continue
		}
		if state.HolderAlive(store.Dir(), st.ID) {
			continue
		}
		st.Status = types.StatusPaused
		st.Summary = fmt.Sprintf("paused after iteration %d: controller died without checkpointing a stop",
			st.CurrentIteration)
		if err := store.Save(st); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating loop %s: %v\n", st.ID, err)
			os.Exit(1)
		}
		fmt.Printf("  %s running -> paused (no live controller)\n", st.ID)
		cleaned++
	}

	if cleaned > 0 {
		fmt.Printf("✓ Marked %d crashed loop(s) paused and resumable\n", cleaned)
	} else {
		fmt.Println("✓ No crashed loops found")
	}

	// Prune the journal while we are here.
	rc, err := config.JournalRetentionFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving retention config: %v\n", err)
		os.Exit(1)
	}
	if !rc.CleanupEnabled {
		fmt.Println("Journal cleanup disabled, skipping")
		return
	}

	j, err := journal.Open(filepath.Join(cfg.StateDir, "journal.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	removed, err := j.Prune(ctx, journal.RetentionPolicy{
		MaxAge:       rc.RetentionAge(),
		PerLoopLimit: rc.PerLoopLimitEvents,
		GlobalLimit:  rc.GlobalLimitEvents,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning journal: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Pruned %d journal event(s) (%s)\n", removed, rc)
}
