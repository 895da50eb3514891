package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/churn-dev/churn/internal/events"
	"github.com/churn-dev/churn/internal/types"
)

// displayEvent formats and prints a single journal event with color
func displayEvent(event *events.Event) {
	var severityColor *color.Color
	var severityIcon string

	switch event.Severity {
	case events.SeverityInfo:
		severityColor = color.New(color.FgCyan)
		severityIcon = "•"
	case events.SeverityWarning:
		severityColor = color.New(color.FgYellow)
		severityIcon = "⚠"
	case events.SeverityError:
		severityColor = color.New(color.FgRed)
		severityIcon = "✗"
	default:
		severityColor = color.New(color.FgWhite)
		severityIcon = "•"
	}

	timestamp := event.Timestamp.Local().Format("15:04:05")

	typeColor := color.New(color.FgMagenta)
	eventType := typeColor.Sprint(string(event.Type))

	loopColor := color.New(color.FgGreen)
	loopID := loopColor.Sprint(shortLoopID(event.LoopID))

	fmt.Printf("%s [%s] %s %s: %s\n",
		severityColor.Sprint(severityIcon),
		timestamp,
		loopID,
		eventType,
		event.Message,
	)
}

// loopStatusStyle returns the icon and color for a loop status
func loopStatusStyle(status types.LoopStatus) (string, func(a ...interface{}) string) {
	switch status {
	case types.StatusRunning:
		return "●", color.New(color.FgGreen).SprintFunc()
	case types.StatusCompleted:
		return "✓", color.New(color.FgGreen).SprintFunc()
	case types.StatusPaused:
		return "⏸", color.New(color.FgYellow).SprintFunc()
	case types.StatusStalled:
		return "◍", color.New(color.FgYellow).SprintFunc()
	case types.StatusMaxIterations:
		return "◷", color.New(color.FgRed).SprintFunc()
	default:
		return "✗", color.New(color.FgRed).SprintFunc()
	}
}

// unitStatusStyle returns the icon and color for a plan unit status
func unitStatusStyle(status types.UnitStatus) (string, func(a ...interface{}) string) {
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

// outcomeStyle returns the icon and color for an iteration outcome
func outcomeStyle(outcome types.Outcome) (string, func(a ...interface{}) string) {
	switch outcome {
	case types.OutcomeSuccess:
		return "✓", color.New(color.FgGreen).SprintFunc()
	case types.OutcomeFailure:
		return "✗", color.New(color.FgRed).SprintFunc()
	case types.OutcomeNoProgress:
		return "○", color.New(color.FgYellow).SprintFunc()
	default:
		return "◐", color.New(color.FgWhite).SprintFunc()
	}
}

// shortLoopID abbreviates a loop id for display
func shortLoopID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
