package types

import (
	"testing"
	"time"
)

// TestLoopStatusTransitions verifies the status transition table:
// running reaches every exit, paused only re-enters running, and
// terminal states have no outgoing edges
func TestLoopStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to LoopStatus
	}{
		{StatusRunning, StatusRunning},
		{StatusRunning, StatusCompleted},
		{StatusRunning, StatusFailed},
		{StatusRunning, StatusPaused},
		{StatusRunning, StatusMaxIterations},
		{StatusRunning, StatusStalled},
		{StatusPaused, StatusRunning},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("transition %s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct {
		from, to LoopStatus
	}{
		{StatusCompleted, StatusRunning},
		{StatusFailed, StatusRunning},
		{StatusMaxIterations, StatusRunning},
		{StatusStalled, StatusRunning},
		{StatusPaused, StatusCompleted},
		{StatusPaused, StatusFailed},
		{StatusCompleted, StatusPaused},
	}
	for _, tr := range denied {
		if CanTransition(tr.from, tr.to) {
			t.Errorf("transition %s -> %s should be denied", tr.from, tr.to)
		}
	}
}

// TestLoopStatusTerminal verifies terminal classification and that
// paused stays resumable
func TestLoopStatusTerminal(t *testing.T) {
	terminal := []LoopStatus{StatusCompleted, StatusFailed, StatusMaxIterations, StatusStalled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StatusRunning.IsTerminal() {
		t.Error("running should not be terminal")
	}
	if StatusPaused.IsTerminal() {
		t.Error("paused should not be terminal")
	}
}

// TestExitCodes verifies the process exit code convention
func TestExitCodes(t *testing.T) {
	cases := []struct {
		status LoopStatus
		code   int
	}{
		{StatusCompleted, 0},
		{StatusFailed, 1},
		{StatusMaxIterations, 2},
		{StatusStalled, 3},
		{StatusPaused, 4},
	}
	for _, tc := range cases {
		if got := tc.status.ExitCode(); got != tc.code {
			t.Errorf("exit code for %s: got %d, want %d", tc.status, got, tc.code)
		}
	}
}

// TestSeverityOrdering verifies the rank order and threshold comparison
func TestSeverityOrdering(t *testing.T) {
	order := []Severity{SeverityInfo, SeverityMinor, SeverityMajor, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("%s should rank above %s", order[i], order[i-1])
		}
	}

	if !SeverityCritical.AtLeast(SeverityMajor) {
		t.Error("critical should be at least major")
	}
	if !SeverityMajor.AtLeast(SeverityMajor) {
		t.Error("major should be at least major")
	}
	if SeverityMinor.AtLeast(SeverityMajor) {
		t.Error("minor should not be at least major")
	}
}

// TestRecoveryLevelStrings verifies level names used in summaries
func TestRecoveryLevelStrings(t *testing.T) {
	cases := []struct {
		level RecoveryLevel
		name  string
	}{
		{RecoveryNone, "none"},
		{RecoveryRetry, "retry"},
		{RecoveryAutomatedFix, "automated_fix"},
		{RecoveryAlternative, "alternative_approach"},
		{RecoverySkipNonBlocking, "skip_non_blocking"},
		{RecoveryAbort, "abort"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.name {
			t.Errorf("level %d: got %q, want %q", tc.level, got, tc.name)
		}
	}
	if RecoveryLevel(6).IsValid() {
		t.Error("level 6 should be invalid")
	}
}

// TestLoopStateValidate verifies the iteration-count invariant and
// enum checks
func TestLoopStateValidate(t *testing.T) {
	now := time.Now().UTC()
	state := &LoopState{
		ID:     "loop-1",
		Status: StatusRunning,
		Mode:   ModeTaskLoop,
		Config: LoopConfig{MaxIterations: 5, AutoRecover: true},
		Iterations: []IterationRecord{
			{Number: 1, StartedAt: now, CompletedAt: now, Outcome: OutcomeSuccess},
		},
		CurrentIteration: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := state.Validate(); err != nil {
		t.Fatalf("valid state rejected: %v", err)
	}

	state.CurrentIteration = 2
	if err := state.Validate(); err == nil {
		t.Error("mismatched current_iteration should fail validation")
	}
	state.CurrentIteration = 1

	state.Status = "sideways"
	if err := state.Validate(); err == nil {
		t.Error("unknown status should fail validation")
	}
	state.Status = StatusRunning

	state.Config.MaxIterations = 0
	if err := state.Validate(); err == nil {
		t.Error("zero max_iterations should fail validation")
	}
	state.Config.MaxIterations = 5

	state.Iterations[0].Number = 7
	if err := state.Validate(); err == nil {
		t.Error("out-of-order iteration number should fail validation")
	}
}

// TestSeverityThresholdDefault verifies the default threshold is major
func TestSeverityThresholdDefault(t *testing.T) {
	cfg := LoopConfig{MaxIterations: 1}
	if got := cfg.SeverityThreshold(); got != SeverityMajor {
		t.Errorf("default threshold: got %s, want %s", got, SeverityMajor)
	}
	cfg.ExitSeverityThreshold = SeverityCritical
	if got := cfg.SeverityThreshold(); got != SeverityCritical {
		t.Errorf("configured threshold: got %s, want %s", got, SeverityCritical)
	}
}

// TestPendingUnits verifies resolved statuses drop out of the pending set
func TestPendingUnits(t *testing.T) {
	state := &LoopState{
		Plan: []Unit{
			{ID: "a", Status: UnitDone},
			{ID: "b", Status: UnitPending},
			{ID: "c", Status: UnitSkipped},
			{ID: "d", Status: UnitReplaced},
			{ID: "e", Status: UnitPending},
		},
	}
	pending := state.PendingUnits()
	if len(pending) != 2 || pending[0] != "b" || pending[1] != "e" {
		t.Errorf("pending units: got %v, want [b e]", pending)
	}
}
