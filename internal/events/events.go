// Package events defines the loop lifecycle event vocabulary shared by
// the controller, the journal, and the CLI.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event that occurred during a loop run.
type EventType string

const (
	// EventTypeLoopCreated indicates a new loop was created
	EventTypeLoopCreated EventType = "loop_created"
	// EventTypeLoopResumed indicates a paused or crashed loop re-entered running
	EventTypeLoopResumed EventType = "loop_resumed"
	// EventTypeIterationStarted indicates a worker invocation began
	EventTypeIterationStarted EventType = "iteration_started"
	// EventTypeIterationCompleted indicates an iteration was classified and recorded
	EventTypeIterationCompleted EventType = "iteration_completed"
	// EventTypeRecoveryApplied indicates the escalator selected a recovery action
	EventTypeRecoveryApplied EventType = "recovery_applied"
	// EventTypeUnitSkipped indicates a non-blocking unit was skipped
	EventTypeUnitSkipped EventType = "unit_skipped"
	// EventTypeUnitReplaced indicates a replan substituted replacement units
	EventTypeUnitReplaced EventType = "unit_replaced"
	// EventTypeStallDetected indicates the fingerprint window filled with one signature
	EventTypeStallDetected EventType = "stall_detected"
	// EventTypeAbortObserved indicates an abort signal was seen between iterations
	EventTypeAbortObserved EventType = "abort_observed"
	// EventTypeLoopTerminal indicates the loop reached a terminal status
	EventTypeLoopTerminal EventType = "loop_terminal"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// Event is one entry in a loop's history feed.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// LoopID is the loop this event belongs to
	LoopID string `json:"loop_id"`
	// Iteration is the iteration number in flight, 0 for loop-level events
	Iteration int `json:"iteration"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data
	Data map[string]interface{} `json:"data,omitempty"`
}

// New creates an event with a fresh id and timestamp.
func New(eventType EventType, loopID string, iteration int, severity EventSeverity, message string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		LoopID:    loopID,
		Iteration: iteration,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// Sink receives emitted events. Sinks must tolerate being called from a
// single goroutine per loop; emission failures never stop the loop.
type Sink interface {
	Emit(event *Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event *Event) error

// Emit calls the function.
func (f SinkFunc) Emit(event *Event) error {
	return f(event)
}

// multiSink fans events out to several sinks, keeping the first error.
type multiSink struct {
	sinks []Sink
}

// Multi combines sinks into one. Nil sinks are dropped.
func Multi(sinks ...Sink) Sink {
	var kept []Sink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &multiSink{sinks: kept}
}

func (m *multiSink) Emit(event *Event) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Emit(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Discard swallows every event.
var Discard Sink = SinkFunc(func(*Event) error { return nil })
