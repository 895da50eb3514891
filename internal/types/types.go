package types

// LoopStatus represents the lifecycle state of a loop
type LoopStatus string

const (
	StatusRunning       LoopStatus = "running"
	StatusCompleted     LoopStatus = "completed"
	StatusFailed        LoopStatus = "failed"
	StatusPaused        LoopStatus = "paused"
	StatusMaxIterations LoopStatus = "max_iterations_reached"
	StatusStalled       LoopStatus = "stalled"
)

// IsValid checks if the status value is valid
func (s LoopStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusFailed, StatusPaused,
		StatusMaxIterations, StatusStalled:
		return true
	}
	return false
}

// IsTerminal reports whether the status permits no further iterations.
// Paused is the one non-terminal exit: a paused loop can be resumed.
func (s LoopStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusMaxIterations, StatusStalled:
		return true
	}
	return false
}

// ExitCode maps a status to the process exit code convention:
// 0 completed, 1 failed, 2 max iterations, 3 stalled, 4 paused.
func (s LoopStatus) ExitCode() int {
	switch s {
	case StatusCompleted:
		return 0
	case StatusFailed:
		return 1
	case StatusMaxIterations:
		return 2
	case StatusStalled:
		return 3
	case StatusPaused:
		return 4
	}
	return 1
}

// validTransitions defines the allowed status transitions.
// A terminal status has no outgoing edges.
var validTransitions = map[LoopStatus][]LoopStatus{
	StatusRunning: {StatusRunning, StatusCompleted, StatusFailed,
		StatusPaused, StatusMaxIterations, StatusStalled},
	StatusPaused: {StatusRunning},
}

// CanTransition checks if a status transition is allowed
func CanTransition(from, to LoopStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LoopMode selects which exit and recovery policy applies
type LoopMode string

const (
	// ModeTaskLoop drives a task plan until every unit is done
	ModeTaskLoop LoopMode = "task_loop"

	// ModeQACycle drives build/review/fix rounds until the review is clean
	ModeQACycle LoopMode = "qa_cycle"
)

// IsValid checks if the mode value is valid
func (m LoopMode) IsValid() bool {
	switch m {
	case ModeTaskLoop, ModeQACycle:
		return true
	}
	return false
}

// Outcome classifies a single iteration's result
type Outcome string

const (
	// OutcomeSuccess means at least one unit of progress and no errors
	OutcomeSuccess Outcome = "success"

	// OutcomePartial means work was attempted without completing or erroring
	OutcomePartial Outcome = "partial"

	// OutcomeFailure means the worker reported an error, crashed, or timed out
	OutcomeFailure Outcome = "failure"

	// OutcomeNoProgress means the worker reported neither progress nor error
	OutcomeNoProgress Outcome = "no_progress"
)

// IsValid checks if the outcome value is valid
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeFailure, OutcomeNoProgress:
		return true
	}
	return false
}

// Severity ranks a review issue
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityMinor, SeverityMajor, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the ordering of a severity, info lowest
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityMinor:
		return 1
	case SeverityMajor:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// AtLeast reports whether s ranks at or above threshold
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// RecoveryLevel is one of the five escalating corrective actions.
// Zero means no recovery was applied.
type RecoveryLevel int

const (
	RecoveryNone            RecoveryLevel = 0
	RecoveryRetry           RecoveryLevel = 1
	RecoveryAutomatedFix    RecoveryLevel = 2
	RecoveryAlternative     RecoveryLevel = 3
	RecoverySkipNonBlocking RecoveryLevel = 4
	RecoveryAbort           RecoveryLevel = 5
)

// String returns the level name used in summaries and events
func (r RecoveryLevel) String() string {
	switch r {
	case RecoveryNone:
		return "none"
	case RecoveryRetry:
		return "retry"
	case RecoveryAutomatedFix:
		return "automated_fix"
	case RecoveryAlternative:
		return "alternative_approach"
	case RecoverySkipNonBlocking:
		return "skip_non_blocking"
	case RecoveryAbort:
		return "abort"
	}
	return "unknown"
}

// IsValid checks if the recovery level value is valid
func (r RecoveryLevel) IsValid() bool {
	return r >= RecoveryNone && r <= RecoveryAbort
}

// RequestKind tags the capability a worker invocation asks for
type RequestKind string

const (
	// RequestAttempt asks the worker to make progress on the active unit
	RequestAttempt RequestKind = "attempt"

	// RequestFix asks for a lightweight fix scoped to a specific error
	RequestFix RequestKind = "fix"

	// RequestReplan asks for a decomposed or alternative unit
	RequestReplan RequestKind = "replan"

	// RequestReview asks for a review pass over the current build
	RequestReview RequestKind = "review"
)

// IsValid checks if the request kind value is valid
func (k RequestKind) IsValid() bool {
	switch k {
	case RequestAttempt, RequestFix, RequestReplan, RequestReview:
		return true
	}
	return false
}

// UnitStatus tracks a plan unit through the loop
type UnitStatus string

const (
	UnitPending  UnitStatus = "pending"
	UnitDone     UnitStatus = "done"
	UnitSkipped  UnitStatus = "skipped"
	UnitReplaced UnitStatus = "replaced"
)

// IsValid checks if the unit status value is valid
func (s UnitStatus) IsValid() bool {
	switch s {
	case UnitPending, UnitDone, UnitSkipped, UnitReplaced:
		return true
	}
	return false
}

// Resolved reports whether the unit no longer blocks loop completion
func (s UnitStatus) Resolved() bool {
	return s == UnitDone || s == UnitSkipped || s == UnitReplaced
}
