package loop

import (
	"github.com/churn-dev/churn/internal/types"
)

// RecordUnitFailure increments the consecutive-failure count for a unit
// and returns the new count. The count only ever decreases by the unit
// succeeding (ClearUnitFailures).
func RecordUnitFailure(state *types.LoopState, unitID string) int {
	if state.UnitFailures == nil {
		state.UnitFailures = make(map[string]int)
	}
	state.UnitFailures[unitID]++
	return state.UnitFailures[unitID]
}

// ClearUnitFailures resets the failure count for a unit after it
// completes.
func ClearUnitFailures(state *types.LoopState, unitID string) {
	delete(state.UnitFailures, unitID)
}

// SelectRecovery picks the recovery level for a failure. unitFailures is
// the unit's consecutive-failure count including the current failure,
// blocking whether other pending work depends on the unit, and loopFailures
// the loop-wide consecutive failure count including the current failure.
//
// Escalation is strictly monotonic per unit: each additional failure on
// the same unit selects a level at least as severe as the last, until
// the unit succeeds and its count resets.
func SelectRecovery(unitFailures int, blocking bool, loopFailures int) types.RecoveryLevel {
	if loopFailures >= types.MaxConsecutiveFailures {
		return types.RecoveryAbort
	}
	switch {
	case unitFailures <= 1:
		return types.RecoveryRetry
	case unitFailures == 2:
		return types.RecoveryAutomatedFix
	case unitFailures == 3:
		return types.RecoveryAlternative
	case blocking:
		return types.RecoveryAbort
	default:
		return types.RecoverySkipNonBlocking
	}
}

// requestKindFor maps a recovery level to the kind of request the next
// iteration sends. Skip and Abort act on the loop directly and send
// nothing.
func requestKindFor(level types.RecoveryLevel) (types.RequestKind, bool) {
	switch level {
	case types.RecoveryRetry:
		return types.RequestAttempt, true
	case types.RecoveryAutomatedFix:
		return types.RequestFix, true
	case types.RecoveryAlternative:
		return types.RequestReplan, true
	default:
		return "", false
	}
}
