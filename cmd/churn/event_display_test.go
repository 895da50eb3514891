package main

import (
	"testing"

	"github.com/churn-dev/churn/internal/types"
)

func TestShortLoopID(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{"uuid is truncated", "9a3f1b2c-4d5e-6f70-8192-a3b4c5d6e7f8", "9a3f1b2c"},
		{"short id untouched", "loop-1", "loop-1"},
		{"exactly eight chars", "12345678", "12345678"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shortLoopID(tt.id); got != tt.expected {
				t.Errorf("shortLoopID(%q) = %q, want %q", tt.id, got, tt.expected)
			}
		})
	}
}

func TestLoopStatusStyleIcons(t *testing.T) {
	tests := []struct {
		status types.LoopStatus
		icon   string
	}{
		{types.StatusRunning, "●"},
		{types.StatusCompleted, "✓"},
		{types.StatusPaused, "⏸"},
		{types.StatusStalled, "◍"},
		{types.StatusMaxIterations, "◷"},
		{types.StatusFailed, "✗"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			icon, paint := loopStatusStyle(tt.status)
			if icon != tt.icon {
				t.Errorf("loopStatusStyle(%s) icon = %q, want %q", tt.status, icon, tt.icon)
			}
			if paint == nil {
				t.Errorf("loopStatusStyle(%s) returned nil painter", tt.status)
			}
		})
	}
}

func TestUnitStatusStyleIcons(t *testing.T) {
	tests := []struct {
		status types.UnitStatus
		icon   string
	}{
		{types.UnitPending, "○"},
		{types.UnitDone, "✓"},
		{types.UnitSkipped, "⊘"},
		{types.UnitReplaced, "↺"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			icon, _ := unitStatusStyle(tt.status)
			if icon != tt.icon {
				t.Errorf("unitStatusStyle(%s) icon = %q, want %q", tt.status, icon, tt.icon)
			}
		})
	}
}

func TestOutcomeStyleIcons(t *testing.T) {
	tests := []struct {
		outcome types.Outcome
		icon    string
	}{
		{types.OutcomeSuccess, "✓"},
		{types.OutcomeFailure, "✗"},
		{types.OutcomeNoProgress, "○"},
		{types.OutcomePartial, "◐"},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			icon, _ := outcomeStyle(tt.outcome)
			if icon != tt.icon {
				t.Errorf("outcomeStyle(%s) icon = %q, want %q", tt.outcome, icon, tt.icon)
			}
		})
	}
}
