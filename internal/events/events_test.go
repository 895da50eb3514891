package events

import (
	"errors"
	"testing"
)

// TestNewPopulatesIdentity verifies fresh events carry an id and timestamp
func TestNewPopulatesIdentity(t *testing.T) {
	ev := New(EventTypeIterationStarted, "loop-1", 3, SeverityInfo, "iteration 3 started", nil)
	if ev.ID == "" {
		t.Error("event id should be assigned")
	}
	if ev.Timestamp.IsZero() {
		t.Error("event timestamp should be set")
	}
	if ev.LoopID != "loop-1" || ev.Iteration != 3 {
		t.Errorf("event identity wrong: %+v", ev)
	}
}

// TestMultiFansOut verifies every sink sees the event and the first
// error is reported without stopping the fan-out
func TestMultiFansOut(t *testing.T) {
	var first, second int
	boom := errors.New("boom")

	sink := Multi(
		SinkFunc(func(*Event) error { first++; return boom }),
		nil,
		SinkFunc(func(*Event) error { second++; return nil }),
	)

	err := sink.Emit(New(EventTypeLoopCreated, "loop-1", 0, SeverityInfo, "created", nil))
	if !errors.Is(err, boom) {
		t.Errorf("expected first error back, got %v", err)
	}
	if first != 1 || second != 1 {
		t.Errorf("fan-out counts: first=%d second=%d, want 1/1", first, second)
	}
}

// TestDiscard verifies the no-op sink accepts anything
func TestDiscard(t *testing.T) {
	if err := Discard.Emit(New(EventTypeLoopTerminal, "loop-1", 9, SeverityError, "done", nil)); err != nil {
		t.Errorf("discard should never fail: %v", err)
	}
}
