// Package worker defines the contract between the loop controller and
// the external task executor, plus the subprocess adapter implementing it.
package worker

import (
	"context"
	"errors"

	"github.com/churn-dev/churn/internal/types"
)

// Failure categories the controller assigns to worker-level problems
const (
	// CategoryProtocolError marks a crashed worker or malformed report
	CategoryProtocolError = "worker_protocol_error"

	// CategoryTimeout marks an invocation that exceeded the iteration budget
	CategoryTimeout = "timeout"

	// CategoryNoProgress marks the escalated third consecutive idle iteration
	CategoryNoProgress = "no_progress"
)

// ErrTimeout is returned when an invocation exceeds its time budget
var ErrTimeout = errors.New("worker invocation timed out")

// Context carries everything a worker needs to act on the current
// iteration, including recovery directives, without bespoke wiring.
type Context struct {
	PriorOutcome      types.Outcome       `json:"prior_outcome,omitempty"`
	RemainingWork     []string            `json:"remaining_work,omitempty"`
	ActiveUnit        *types.Unit         `json:"active_unit,omitempty"`
	LastErrors        []types.WorkerError `json:"last_errors,omitempty"`
	OpenIssues        []types.Issue       `json:"open_issues,omitempty"`
	RecoveryLevel     types.RecoveryLevel `json:"recovery_level,omitempty"`
	RecoveryReason    string              `json:"recovery_reason,omitempty"`
	CompletionKeyword string              `json:"completion_keyword,omitempty"`
}

// Request is one worker invocation. Kind selects the capability:
// attempt, fix, replan, or review.
type Request struct {
	Kind      types.RequestKind `json:"kind"`
	LoopID    string            `json:"loop_id"`
	Iteration int               `json:"iteration"`
	Mode      types.LoopMode    `json:"mode"`
	Context   Context           `json:"context"`
}

// Report is the worker's structured reply to one request.
type Report struct {
	// ProgressItems are ids of units completed this iteration
	ProgressItems []string `json:"progress_items,omitempty"`
	// Errors are problems the worker hit while attempting the work
	Errors []types.WorkerError `json:"errors,omitempty"`
	// FreeText is scanned for the completion keyword
	FreeText string `json:"free_text,omitempty"`
	// RawIssues are review findings (qa_cycle requests only)
	RawIssues []types.Issue `json:"raw_issues,omitempty"`
	// ReplacementUnits substitute the active unit after a replan request
	ReplacementUnits []types.Unit `json:"replacement_units,omitempty"`
}

// Worker is the external task executor, opaque to the controller.
// Exactly one invocation is outstanding at a time per loop.
type Worker interface {
	Invoke(ctx context.Context, req Request) (*Report, error)
}
