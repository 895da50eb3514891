package loop

import (
	"testing"

	"github.com/churn-dev/churn/internal/types"
)

func evalState(mode types.LoopMode) *types.LoopState {
	return &types.LoopState{
		ID:     "loop-1",
		Status: types.StatusRunning,
		Mode:   mode,
		Config: types.LoopConfig{
			MaxIterations:     10,
			CompletionKeyword: "DONE",
			AutoRecover:       true,
		},
	}
}

func pendingRec(outcome types.Outcome) *types.IterationRecord {
	return &types.IterationRecord{Number: 1, Outcome: outcome}
}

func TestEvaluateKeywordWinsOverEverything(t *testing.T) {
	st := evalState(types.ModeTaskLoop)
	st.CurrentIteration = 9 // iteration budget would fire
	st.ConsecutiveFailures = 2
	st.FingerprintHistory = []string{"f", "f"}

	rec := pendingRec(types.OutcomeFailure)
	rec.Signals.KeywordDetected = true
	rec.Fingerprint = "f" // stall would fire too

	dec := Evaluate(st, rec)
	if !dec.Terminal || dec.Status != types.StatusCompleted {
		t.Fatalf("decision = %+v, want completed (keyword has top priority)", dec)
	}
}

func TestEvaluateAllUnitsResolved(t *testing.T) {
	st := evalState(types.ModeTaskLoop)
	st.Plan = []types.Unit{
		{ID: "u1", Status: types.UnitDone},
		{ID: "u2", Status: types.UnitSkipped},
	}
	dec := Evaluate(st, pendingRec(types.OutcomeSuccess))
	if !dec.Terminal || dec.Status != types.StatusCompleted {
		t.Fatalf("decision = %+v, want completed", dec)
	}

	// The plan rule is task_loop only.
	qa := evalState(types.ModeQACycle)
	qa.Plan = st.Plan
	if dec := Evaluate(qa, pendingRec(types.OutcomeSuccess)); dec.Terminal {
		t.Fatalf("qa_cycle must not complete on plan state, got %+v", dec)
	}
}

func TestEvaluateCleanReview(t *testing.T) {
	st := evalState(types.ModeQACycle)

	rec := pendingRec(types.OutcomeSuccess)
	rec.Signals.RequestKind = types.RequestReview
	rec.Signals.IssuesFound = 2 // two sub-threshold issues
	rec.Signals.IssuesAtOrAbove = 0
	if dec := Evaluate(st, rec); !dec.Terminal || dec.Status != types.StatusCompleted {
		t.Fatalf("decision = %+v, want completed for clean review", dec)
	}

	dirty := pendingRec(types.OutcomeSuccess)
	dirty.Signals.RequestKind = types.RequestReview
	dirty.Signals.IssuesAtOrAbove = 1
	if dec := Evaluate(st, dirty); dec.Terminal {
		t.Fatalf("decision = %+v, want continue while issues remain", dec)
	}

	// A fix round reporting no issues is not a clean review.
	fix := pendingRec(types.OutcomeSuccess)
	fix.Signals.RequestKind = types.RequestAttempt
	if dec := Evaluate(st, fix); dec.Terminal {
		t.Fatalf("decision = %+v, want continue, only review passes complete the cycle", dec)
	}

	// A crashed review pass never reads as clean.
	crashed := pendingRec(types.OutcomeFailure)
	crashed.Signals.RequestKind = types.RequestReview
	crashed.Fingerprint = "f1"
	if dec := Evaluate(st, crashed); dec.Terminal {
		t.Fatalf("decision = %+v, want continue for failed review", dec)
	}
}

func TestEvaluateStallBeatsBudgets(t *testing.T) {
	st := evalState(types.ModeTaskLoop)
	st.Config.MaxIterations = 3
	st.CurrentIteration = 2
	st.ConsecutiveFailures = 2
	st.FingerprintHistory = []string{"same", "same"}

	rec := pendingRec(types.OutcomeFailure)
	rec.Fingerprint = "same"

	dec := Evaluate(st, rec)
	if dec.Status != types.StatusStalled {
		t.Fatalf("decision = %+v, want stalled over max_iterations and failed", dec)
	}
}

func TestEvaluateQAPassFingerprintStalls(t *testing.T) {
	st := evalState(types.ModeQACycle)
	st.FingerprintHistory = []string{"set1", "set1"}

	rec := pendingRec(types.OutcomeNoProgress)
	rec.Signals.RequestKind = types.RequestReview
	rec.Signals.IssuesAtOrAbove = 2
	rec.Signals.PassFingerprint = "set1"

	dec := Evaluate(st, rec)
	if dec.Status != types.StatusStalled {
		t.Fatalf("decision = %+v, want stalled on identical issue sets", dec)
	}
}

func TestEvaluateIterationBudget(t *testing.T) {
	st := evalState(types.ModeTaskLoop)
	st.Config.MaxIterations = 5
	st.CurrentIteration = 4

	dec := Evaluate(st, pendingRec(types.OutcomePartial))
	if dec.Status != types.StatusMaxIterations {
		t.Fatalf("decision = %+v, want max_iterations_reached on iteration 5 of 5", dec)
	}

	st.CurrentIteration = 3
	if dec := Evaluate(st, pendingRec(types.OutcomePartial)); dec.Terminal {
		t.Fatalf("decision = %+v, want continue on iteration 4 of 5", dec)
	}
}

func TestEvaluateFailureBudget(t *testing.T) {
	st := evalState(types.ModeTaskLoop)
	st.ConsecutiveFailures = 2

	rec := pendingRec(types.OutcomeFailure)
	rec.Fingerprint = "varied-3" // distinct signature, no stall
	st.FingerprintHistory = []string{"varied-1", "varied-2"}

	dec := Evaluate(st, rec)
	if dec.Status != types.StatusFailed {
		t.Fatalf("decision = %+v, want failed on third consecutive failure", dec)
	}
}

func TestEvaluateSuccessResetsFailureStreak(t *testing.T) {
	st := evalState(types.ModeTaskLoop)
	st.ConsecutiveFailures = 2
	st.Plan = []types.Unit{{ID: "u1", Status: types.UnitPending}}

	dec := Evaluate(st, pendingRec(types.OutcomeSuccess))
	if dec.Terminal {
		t.Fatalf("decision = %+v, want continue after a success", dec)
	}
}

func TestEvaluateContinue(t *testing.T) {
	st := evalState(types.ModeTaskLoop)
	st.Plan = []types.Unit{{ID: "u1", Status: types.UnitPending}}

	dec := Evaluate(st, pendingRec(types.OutcomePartial))
	if dec.Terminal {
		t.Fatalf("decision = %+v, want continue", dec)
	}
}

// Evaluate is a pure function: the same inputs give the same decision.
func TestEvaluateIdempotent(t *testing.T) {
	st := evalState(types.ModeTaskLoop)
	st.Config.MaxIterations = 3
	st.CurrentIteration = 2
	st.ConsecutiveFailures = 2
	st.FingerprintHistory = []string{"f", "f"}

	rec := pendingRec(types.OutcomeFailure)
	rec.Fingerprint = "f"

	first := Evaluate(st, rec)
	second := Evaluate(st, rec)
	if first != second {
		t.Fatalf("decisions differ: %+v vs %+v", first, second)
	}
	if len(st.FingerprintHistory) != 2 {
		t.Error("Evaluate must not mutate the state's fingerprint history")
	}
}
