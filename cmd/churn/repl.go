package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/churn-dev/churn/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive shell",
	Long: `Start an interactive shell for working with loops.

The shell wraps the same operations as the CLI:
- list, status, and tail to inspect loops
- abort to pause a running loop
- resume to re-enter a paused loop inline

Type 'help' in the shell for available commands.`,
	Run: func(cmd *cobra.Command, args []string) {
		// The shell works without a journal; tail just reports it missing.
		shellCfg := &repl.Config{Store: store}
		j, err := openJournal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: journal unavailable: %v\n", err)
		} else {
			defer j.Close()
			shellCfg.Journal = j
		}

		r, err := repl.New(shellCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create shell: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		if err := r.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
