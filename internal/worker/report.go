package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/churn-dev/churn/internal/types"
)

// ProtocolError describes a worker that broke the invocation contract:
// crashed, exited non-zero, or produced an undecodable report.
type ProtocolError struct {
	Reason   string
	ExitCode int
	Stderr   string
}

func (e *ProtocolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("worker protocol error: %s (stderr: %s)", e.Reason, e.Stderr)
	}
	return fmt.Sprintf("worker protocol error: %s", e.Reason)
}

// DecodeReport parses and normalizes a worker report. Structural
// problems return a ProtocolError; sloppy-but-usable fields are
// normalized instead of rejected.
func DecodeReport(data []byte) (*Report, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, &ProtocolError{Reason: "empty report"}
	}

	var report Report
	if err := json.Unmarshal([]byte(trimmed), &report); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("undecodable report: %v", err)}
	}
	normalizeReport(&report)
	if err := validateReport(&report); err != nil {
		return nil, &ProtocolError{Reason: err.Error()}
	}
	return &report, nil
}

// normalizeReport fills defaults for fields workers commonly leave loose
func normalizeReport(r *Report) {
	for i := range r.Errors {
		if strings.TrimSpace(r.Errors[i].Category) == "" {
			r.Errors[i].Category = "unspecified"
		}
	}
	for i := range r.RawIssues {
		if r.RawIssues[i].Severity == "" {
			r.RawIssues[i].Severity = types.SeverityMinor
		}
		if r.RawIssues[i].LineEnd == 0 {
			r.RawIssues[i].LineEnd = r.RawIssues[i].LineStart
		}
	}
	for i := range r.ReplacementUnits {
		if r.ReplacementUnits[i].Status == "" {
			r.ReplacementUnits[i].Status = types.UnitPending
		}
	}
}

// validateReport rejects reports the controller cannot act on safely
func validateReport(r *Report) error {
	for _, issue := range r.RawIssues {
		if !issue.Severity.IsValid() {
			return fmt.Errorf("issue has unknown severity %q", issue.Severity)
		}
		if issue.File == "" {
			return fmt.Errorf("issue is missing a file path")
		}
	}
	for _, unit := range r.ReplacementUnits {
		if unit.ID == "" {
			return fmt.Errorf("replacement unit is missing an id")
		}
	}
	return nil
}
