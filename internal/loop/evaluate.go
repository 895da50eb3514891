package loop

import (
	"fmt"

	"github.com/churn-dev/churn/internal/types"
)

// Decision is the exit condition evaluator's verdict after an iteration.
// A non-terminal decision means the loop keeps running.
type Decision struct {
	Terminal bool
	Status   types.LoopStatus
	Reason   string
}

func terminal(status types.LoopStatus, format string, args ...interface{}) Decision {
	return Decision{Terminal: true, Status: status, Reason: fmt.Sprintf(format, args...)}
}

// Evaluate judges the loop against its exit conditions. pending is the
// just-finished iteration that has not been appended to state yet, so
// the decision lands on the iteration that caused it. Evaluate is a pure
// function of its inputs and mutates neither.
//
// Conditions are checked in fixed priority order: completion signals
// first (keyword, plan resolved, clean review), then stall, then the
// iteration and failure budgets. Stall outranks both budgets so a loop
// that is stuck on one signature reports stalled, not failed. When the
// keyword and plan completion fire together the keyword wins; both
// signals stay recorded and the result is completed either way.
func Evaluate(state *types.LoopState, pending *types.IterationRecord) Decision {
	if pending.Signals.KeywordDetected {
		return terminal(types.StatusCompleted,
			"completion keyword %q detected", state.Config.CompletionKeyword)
	}

	if state.Mode == types.ModeTaskLoop && AllResolved(state.Plan) {
		return terminal(types.StatusCompleted,
			"all %d plan units resolved", len(state.Plan))
	}

	if state.Mode == types.ModeQACycle &&
		pending.Signals.RequestKind == types.RequestReview &&
		pending.Outcome != types.OutcomeFailure &&
		pending.Signals.IssuesAtOrAbove == 0 {
		return terminal(types.StatusCompleted,
			"review pass clean at %s severity and above", state.Config.SeverityThreshold())
	}

	if fp := stallFingerprint(pending); fp != "" {
		window := PushFingerprint(append([]string(nil), state.FingerprintHistory...), fp)
		if Stalled(window) {
			return terminal(types.StatusStalled,
				"signature %s repeated %d times", fp, types.FingerprintWindow)
		}
	}

	if effective := state.CurrentIteration + 1; effective >= state.Config.MaxIterations {
		return terminal(types.StatusMaxIterations,
			"iteration budget of %d exhausted", state.Config.MaxIterations)
	}

	if failures := effectiveFailures(state, pending); failures >= types.MaxConsecutiveFailures {
		return terminal(types.StatusFailed,
			"%d consecutive failures", failures)
	}

	return Decision{Status: types.StatusRunning}
}

// stallFingerprint returns the signature the pending iteration
// contributes to the stall window: the failure fingerprint when it
// failed, or the review pass's issue-set fingerprint in qa_cycle mode.
func stallFingerprint(pending *types.IterationRecord) string {
	if pending.Fingerprint != "" {
		return pending.Fingerprint
	}
	return pending.Signals.PassFingerprint
}

// effectiveFailures is the consecutive-failure count including the
// pending iteration. Only a success resets the streak.
func effectiveFailures(state *types.LoopState, pending *types.IterationRecord) int {
	switch pending.Outcome {
	case types.OutcomeFailure:
		return state.ConsecutiveFailures + 1
	case types.OutcomeSuccess:
		return 0
	default:
		return state.ConsecutiveFailures
	}
}
