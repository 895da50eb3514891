package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/churn-dev/churn/internal/config"
	"github.com/churn-dev/churn/internal/journal"
	"github.com/churn-dev/churn/internal/state"
)

var (
	flagStateDir string
	flagConfig   string

	// cfg and store are resolved once by the root PersistentPreRunE and
	// shared by every subcommand.
	cfg   config.Config
	store *state.FileStore
)

var rootCmd = &cobra.Command{
	Use:   "churn",
	Short: "Bounded iteration loops around an external worker",
	Long: `churn drives an external worker command through bounded, resumable
iteration loops.

Each iteration invokes the worker once with a JSON request on stdin,
classifies the JSON report it prints to stdout, checks the exit
conditions, and checkpoints state to disk. Failures escalate through
five recovery levels instead of looping forever; a failure signature
repeating across the stall window ends the loop as stalled.

Exit codes: 0 completed, 1 failed, 2 iteration budget exhausted,
3 stalled, 4 paused.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

// setup resolves the effective config and opens the state store. Flags
// beat environment variables beat the config file beat defaults.
func setup() error {
	path := flagConfig
	if path == "" {
		dir := flagStateDir
		if dir == "" {
			dir = state.DefaultDir
		}
		path = filepath.Join(dir, config.DefaultFileName)
	}

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if flagStateDir != "" {
		loaded.StateDir = flagStateDir
	}
	cfg = loaded

	store, err = state.NewFileStore(cfg.StateDir)
	return err
}

// openJournal opens the event journal living next to the loop state
func openJournal() (*journal.Journal, error) {
	return journal.Open(filepath.Join(store.Dir(), "journal.db"))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "",
		"State directory (default .churn, env CHURN_STATE_DIR)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Config file path (default <state-dir>/config.yml)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
