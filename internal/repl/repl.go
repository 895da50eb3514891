// Package repl provides the interactive shell for inspecting, steering,
// and resuming loops without leaving the terminal.
package repl

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/churn-dev/churn/internal/events"
	"github.com/churn-dev/churn/internal/journal"
	"github.com/churn-dev/churn/internal/loop"
	"github.com/churn-dev/churn/internal/state"
	"github.com/churn-dev/churn/internal/types"
	"github.com/churn-dev/churn/internal/worker"
)

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Store   *state.FileStore
	Journal *journal.Journal // optional, enables tail and event-backed resume
}

// REPL represents the interactive shell
type REPL struct {
	store    *state.FileStore
	journal  *journal.Journal
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}

	r := &REPL{
		store:    cfg.Store,
		journal:  cfg.Journal,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("churn> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// processInput dispatches a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := parts[0]
	args := parts[1:]

	if handler, ok := r.commands[command]; ok {
		return handler(args)
	}

	return fmt.Errorf("unknown command %q, type 'help' for the command list", command)
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["list"] = r.cmdList
	r.commands["status"] = r.cmdStatus
	r.commands["tail"] = r.cmdTail
	r.commands["abort"] = r.cmdAbort
	r.commands["resume"] = r.cmdResume
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("churn interactive shell"))
	fmt.Println("Inspect, steer, and resume iteration loops")
	fmt.Println()
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println()
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"list", "Show all loops in the state directory"},
		{"status <loop-id>", "Show one loop's counters, plan, and recent iterations"},
		{"tail <loop-id> [n]", "Show the last n journal events for a loop (default 20)"},
		{"abort <loop-id>", "Ask a running loop to pause at the next iteration boundary"},
		{"resume <loop-id>", "Resume a paused loop with its recorded worker command"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the shell"},
	}
	for _, cmd := range commands {
		fmt.Printf("  %-22s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Println()
	fmt.Println("Loop ids may be abbreviated to any unique prefix.")
	fmt.Println()
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Goodbye!\n", green("✓"))
	return io.EOF
}

// cmdList shows every loop in the store, newest first
func (r *REPL) cmdList(args []string) error {
	loops, err := r.store.List()
	if err != nil {
		return err
	}
	if len(loops) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("  %s\n", gray("No loops found"))
		return nil
	}

	for _, st := range loops {
		icon, paint := statusStyle(st.Status)
		fmt.Printf("  %s %-24s %-9s  %-22s iter %d/%d  %s\n",
			paint(icon), shortID(st.ID), st.Mode, paint(string(st.Status)),
			st.CurrentIteration, st.Config.MaxIterations,
			st.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

// cmdStatus shows one loop in detail
func (r *REPL) cmdStatus(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: status <loop-id>")
	}
	st, err := state.FindLoop(r.store, args[0])
	if err != nil {
		return err
	}

	icon, paint := statusStyle(st.Status)
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s %s  %s\n", paint(icon), st.ID, paint(string(st.Status)))
	fmt.Printf("  Mode:       %s\n", st.Mode)
	fmt.Printf("  Iteration:  %d of %d\n", st.CurrentIteration, st.Config.MaxIterations)
	fmt.Printf("  Failures:   %d consecutive (budget %d)\n",
		st.ConsecutiveFailures, types.MaxConsecutiveFailures)
	if st.ActiveUnit != "" {
		fmt.Printf("  Active:     %s\n", st.ActiveUnit)
	}
	if st.Summary != "" {
		fmt.Printf("  Summary:    %s\n", st.Summary)
	}

	if len(st.Plan) > 0 {
		fmt.Printf("\n%s\n", yellow("Plan:"))
		for _, u := range st.Plan {
			uIcon, uPaint := unitStyle(u.Status)
			title := u.Title
			if title == "" {
				title = gray("(untitled)")
			}
			fmt.Printf("  %s %-16s %s\n", uPaint(uIcon), u.ID, title)
		}
	}

	if n := len(st.Iterations); n > 0 {
		fmt.Printf("\n%s\n", yellow("Recent iterations:"))
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, rec := range st.Iterations[start:] {
			line := fmt.Sprintf("  #%-3d %-12s %s", rec.Number, rec.Outcome, rec.Signals.RequestKind)
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
	return nil
}

// cmdTail shows recent journal events for a loop
func (r *REPL) cmdTail(args []string) error {
	if r.journal == nil {
		return fmt.Errorf("no journal is open in this shell")
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: tail <loop-id> [n]")
	}
	st, err := state.FindLoop(r.store, args[0])
	if err != nil {
		return err
	}
	limit := 20
	if len(args) == 2 {
		limit, err = strconv.Atoi(args[1])
		if err != nil || limit < 1 {
			return fmt.Errorf("event count must be a positive number, got %q", args[1])
		}
	}

	evs, err := r.journal.Recent(r.ctx, journal.Filter{LoopID: st.ID, Limit: limit})
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("  %s\n", gray("No events recorded"))
		return nil
	}
	for _, ev := range evs {
		printEvent(ev)
	}
	return nil
}

// cmdAbort signals a running loop to pause
func (r *REPL) cmdAbort(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: abort <loop-id>")
	}
	st, err := state.FindLoop(r.store, args[0])
	if err != nil {
		return err
	}
	if st.Status.IsTerminal() {
		return fmt.Errorf("loop %s is already %s", shortID(st.ID), st.Status)
	}

	if state.HolderAlive(r.store.Dir(), st.ID) {
		if err := r.store.SignalAbort(st.ID); err != nil {
			return err
		}
		fmt.Printf("Abort requested; loop %s will pause at the next iteration boundary\n",
			shortID(st.ID))
		return nil
	}

	// No live controller: a crash leftover or an already-paused loop.
	if st.Status == types.StatusRunning {
		st.Status = types.StatusPaused
		st.Summary = fmt.Sprintf("paused after iteration %d: abort with no live controller",
			st.CurrentIteration)
		if err := r.store.Save(st); err != nil {
			return err
		}
		fmt.Printf("No live controller; loop %s marked paused\n", shortID(st.ID))
		return nil
	}
	fmt.Printf("Loop %s is %s; nothing to abort\n", shortID(st.ID), st.Status)
	return nil
}

// cmdResume re-enters a paused loop using its recorded worker command
func (r *REPL) cmdResume(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: resume <loop-id>")
	}
	found, err := state.FindLoop(r.store, args[0])
	if err != nil {
		return err
	}
	st, err := r.store.Resume(found.ID)
	if err != nil {
		return err
	}
	if len(st.Config.WorkerCommand) == 0 {
		return fmt.Errorf("loop %s has no worker command recorded; use 'churn resume --worker'",
			shortID(st.ID))
	}

	w, err := worker.NewCommandWorker(worker.CommandConfig{
		Command: st.Config.WorkerCommand,
		Timeout: st.Config.WorkerTimeout,
	})
	if err != nil {
		return err
	}

	lock, err := state.AcquireLock(r.store.Dir(), st.ID)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()

	var sink events.Sink = events.SinkFunc(func(ev *events.Event) error {
		printEvent(ev)
		return nil
	})
	if r.journal != nil {
		sink = events.Multi(r.journal, sink)
	}

	ctrl, err := loop.New(loop.Config{Store: r.store, Worker: w, Sink: sink})
	if err != nil {
		return err
	}

	res, err := ctrl.Run(r.ctx, st)
	if err != nil {
		return err
	}

	_, paint := statusStyle(res.Status)
	fmt.Printf("\n%s %s\n", paint(string(res.Status)), res.Summary)
	return nil
}

// printEvent formats one journal event with severity colors
func printEvent(ev *events.Event) {
	var paint func(a ...interface{}) string
	var icon string
	switch ev.Severity {
	case events.SeverityWarning:
		paint = color.New(color.FgYellow).SprintFunc()
		icon = "⚠"
	case events.SeverityError:
		paint = color.New(color.FgRed).SprintFunc()
		icon = "✗"
	default:
		paint = color.New(color.FgCyan).SprintFunc()
		icon = "•"
	}

	magenta := color.New(color.FgMagenta).SprintFunc()
	fmt.Printf("%s [%s] %s %s\n",
		paint(icon),
		ev.Timestamp.Local().Format("15:04:05"),
		magenta(string(ev.Type)),
		ev.Message)
}

// statusStyle returns the icon and color for a loop status
func statusStyle(status types.LoopStatus) (string, func(a ...interface{}) string) {
	switch status {
	case types.StatusRunning:
		return "●", color.New(color.FgGreen).SprintFunc()
	case types.StatusCompleted:
		return "✓", color.New(color.FgGreen).SprintFunc()
	case types.StatusPaused:
		return "⏸", color.New(color.FgYellow).SprintFunc()
	case types.StatusStalled:
		return "◍", color.New(color.FgYellow).SprintFunc()
	default:
		return "✗", color.New(color.FgRed).SprintFunc()
	}
}

// unitStyle returns the icon and color for a plan unit status
func unitStyle(status types.UnitStatus) (string, func(a ...interface{}) string) {
	switch status {
	case types.UnitDone:
		return "✓", color.New(color.FgGreen).SprintFunc()
	case types.UnitSkipped:
		return "⊘", color.New(color.FgHiBlack).SprintFunc()
	case types.UnitReplaced:
		return "↺", color.New(color.FgHiBlack).SprintFunc()
	default:
		return "○", color.New(color.FgWhite).SprintFunc()
	}
}

// shortID abbreviates a loop id for display
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
