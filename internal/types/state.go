package types

import (
	"fmt"
	"time"
)

// Policy constants. The failure budget is fixed, not configurable.
const (
	// MaxConsecutiveFailures is the loop-wide failure budget
	MaxConsecutiveFailures = 3

	// FingerprintWindow is the stall detector's sliding window size
	FingerprintWindow = 3

	// NoProgressLimit escalates the Nth consecutive no-progress
	// iteration to a failure
	NoProgressLimit = 3
)

// SyntheticReviewUnit is the unit id review-pass failures are tracked
// against in qa_cycle mode. A review pass is always blocking.
const SyntheticReviewUnit = "review"

// SyntheticLoopUnit is the unit id failures are tracked against in a
// task_loop with no plan (keyword-driven). The loop as a whole is
// always blocking.
const SyntheticLoopUnit = "loop"

// LoopConfig is the immutable snapshot of caller-supplied parameters,
// captured at loop creation so resume needs no flags.
type LoopConfig struct {
	MaxIterations         int           `json:"max_iterations"`
	CompletionKeyword     string        `json:"completion_keyword,omitempty"`
	AutoRecover           bool          `json:"auto_recover"`
	ExitSeverityThreshold Severity      `json:"exit_severity_threshold,omitempty"`
	WorkerCommand         []string      `json:"worker_command,omitempty"`
	WorkerTimeout         time.Duration `json:"worker_timeout,omitempty"`
}

// Validate checks if the config has valid field values
func (c *LoopConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1 (got %d)", c.MaxIterations)
	}
	if c.ExitSeverityThreshold != "" && !c.ExitSeverityThreshold.IsValid() {
		return fmt.Errorf("invalid exit_severity_threshold: %s", c.ExitSeverityThreshold)
	}
	if c.WorkerTimeout < 0 {
		return fmt.Errorf("worker_timeout cannot be negative")
	}
	return nil
}

// SeverityThreshold returns the configured threshold, defaulting to major
func (c *LoopConfig) SeverityThreshold() Severity {
	if c.ExitSeverityThreshold == "" {
		return SeverityMajor
	}
	return c.ExitSeverityThreshold
}

// WorkerError is one error entry from a worker report
type WorkerError struct {
	Category string `json:"category"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Issue is one review finding from a qa_cycle pass
type Issue struct {
	File      string   `json:"file"`
	LineStart int      `json:"line_start,omitempty"`
	LineEnd   int      `json:"line_end,omitempty"`
	Category  string   `json:"category"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message,omitempty"`
}

// Unit is the smallest schedulable item the loop tracks
type Unit struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Status    UnitStatus `json:"status"`
	DependsOn []string   `json:"depends_on,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// Directive is the pending recovery action shaping the next worker
// request. It is persisted so a resumed loop re-enters at the same step.
type Directive struct {
	Kind   RequestKind   `json:"kind"`
	Unit   string        `json:"unit,omitempty"`
	Level  RecoveryLevel `json:"level,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Signals holds the structured facts extracted from one worker report
type Signals struct {
	ItemsCompleted   []string      `json:"items_completed,omitempty"`
	Errors           []WorkerError `json:"errors,omitempty"`
	KeywordDetected  bool          `json:"keyword_detected,omitempty"`
	AllItemsComplete bool          `json:"all_items_complete,omitempty"`
	Timeout          bool          `json:"timeout,omitempty"`
	IssuesFound      int           `json:"issues_found,omitempty"`
	IssuesAtOrAbove  int           `json:"issues_at_or_above,omitempty"`
	RequestKind      RequestKind   `json:"request_kind,omitempty"`

	// PassFingerprint is the issue-set signature of a review pass,
	// present on qa_cycle review iterations only.
	PassFingerprint string `json:"pass_fingerprint,omitempty"`
}

// IterationRecord is one loop pass, immutable once appended
type IterationRecord struct {
	Number               int           `json:"number"`
	StartedAt            time.Time     `json:"started_at"`
	CompletedAt          time.Time     `json:"completed_at"`
	Outcome              Outcome       `json:"outcome"`
	Signals              Signals       `json:"signals"`
	RecoveryLevelApplied RecoveryLevel `json:"recovery_level_applied"`
	Fingerprint          string        `json:"fingerprint,omitempty"`
}

// LoopState is the durable root object for one loop instance.
// It is mutated exclusively by the loop controller and becomes
// immutable the moment Status turns terminal.
type LoopState struct {
	ID                  string            `json:"id"`
	Status              LoopStatus        `json:"status"`
	Mode                LoopMode          `json:"mode"`
	Config              LoopConfig        `json:"config"`
	CurrentIteration    int               `json:"current_iteration"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	NoProgressCount     int               `json:"no_progress_count"`
	FingerprintHistory  []string          `json:"stall_fingerprint_history,omitempty"`
	Iterations          []IterationRecord `json:"iterations"`
	Plan                []Unit            `json:"plan,omitempty"`
	OpenIssues          []Issue           `json:"open_issues,omitempty"`
	UnitFailures        map[string]int    `json:"unit_failures,omitempty"`
	ActiveUnit          string            `json:"active_unit,omitempty"`
	NextRequest         *Directive        `json:"next_request,omitempty"`
	Summary             string            `json:"summary,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Validate checks structural invariants before a save or after a load
func (s *LoopState) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", s.Status)
	}
	if !s.Mode.IsValid() {
		return fmt.Errorf("invalid mode: %s", s.Mode)
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if s.CurrentIteration != len(s.Iterations) {
		return fmt.Errorf("current_iteration %d does not match %d recorded iterations",
			s.CurrentIteration, len(s.Iterations))
	}
	if len(s.FingerprintHistory) > FingerprintWindow {
		return fmt.Errorf("fingerprint history exceeds window of %d", FingerprintWindow)
	}
	for i := range s.Iterations {
		rec := &s.Iterations[i]
		if rec.Number != i+1 {
			return fmt.Errorf("iteration %d recorded out of order (number %d)", i+1, rec.Number)
		}
		if !rec.Outcome.IsValid() {
			return fmt.Errorf("iteration %d has invalid outcome: %s", rec.Number, rec.Outcome)
		}
		if !rec.RecoveryLevelApplied.IsValid() {
			return fmt.Errorf("iteration %d has invalid recovery level: %d",
				rec.Number, rec.RecoveryLevelApplied)
		}
	}
	for i := range s.Plan {
		if s.Plan[i].ID == "" {
			return fmt.Errorf("plan unit %d has no id", i)
		}
		if !s.Plan[i].Status.IsValid() {
			return fmt.Errorf("plan unit %s has invalid status: %s", s.Plan[i].ID, s.Plan[i].Status)
		}
	}
	return nil
}

// LastRecord returns the most recent iteration record, or nil
func (s *LoopState) LastRecord() *IterationRecord {
	if len(s.Iterations) == 0 {
		return nil
	}
	return &s.Iterations[len(s.Iterations)-1]
}

// Unit returns the plan unit with the given id, or nil
func (s *LoopState) Unit(id string) *Unit {
	for i := range s.Plan {
		if s.Plan[i].ID == id {
			return &s.Plan[i]
		}
	}
	return nil
}

// PendingUnits returns the ids of plan units not yet resolved
func (s *LoopState) PendingUnits() []string {
	var ids []string
	for i := range s.Plan {
		if !s.Plan[i].Status.Resolved() {
			ids = append(ids, s.Plan[i].ID)
		}
	}
	return ids
}
