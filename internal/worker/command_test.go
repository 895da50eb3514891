package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/churn-dev/churn/internal/types"
)

// shWorker builds a CommandWorker around an inline shell script
func shWorker(t *testing.T, script string, mutate func(*CommandConfig)) *CommandWorker {
	t.Helper()
	cfg := DefaultCommandConfig()
	cfg.Command = []string{"/bin/sh", "-c", script}
	cfg.Timeout = 10 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	w, err := NewCommandWorker(cfg)
	if err != nil {
		t.Fatalf("failed to build worker: %v", err)
	}
	return w
}

func attemptRequest(iteration int) Request {
	return Request{
		Kind:      types.RequestAttempt,
		LoopID:    "loop-1",
		Iteration: iteration,
		Mode:      types.ModeTaskLoop,
		Context: Context{
			RemainingWork:     []string{"u1"},
			CompletionKeyword: "DONE",
		},
	}
}

// TestInvokeParsesReport verifies the stdout JSON round trip
func TestInvokeParsesReport(t *testing.T) {
	w := shWorker(t, `cat >/dev/null; printf '%s' '{"progress_items":["u1"],"free_text":"u1 DONE"}'`, nil)

	report, err := w.Invoke(context.Background(), attemptRequest(1))
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if len(report.ProgressItems) != 1 || report.ProgressItems[0] != "u1" {
		t.Errorf("progress items wrong: %v", report.ProgressItems)
	}
	if report.FreeText != "u1 DONE" {
		t.Errorf("free text wrong: %q", report.FreeText)
	}
}

// TestInvokeDeliversRequest verifies the request arrives on stdin
func TestInvokeDeliversRequest(t *testing.T) {
	script := `if grep -q '"kind":"attempt"'; then printf '%s' '{"free_text":"saw attempt"}'; else printf '%s' '{"free_text":"missing"}'; fi`
	w := shWorker(t, script, nil)

	report, err := w.Invoke(context.Background(), attemptRequest(2))
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if report.FreeText != "saw attempt" {
		t.Errorf("request not delivered on stdin: %q", report.FreeText)
	}
}

// TestInvokeNonZeroExit verifies crashes become protocol errors with
// the exit code and stderr preserved
func TestInvokeNonZeroExit(t *testing.T) {
	w := shWorker(t, `echo "ran out of road" >&2; exit 3`, nil)

	_, err := w.Invoke(context.Background(), attemptRequest(1))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if protoErr.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", protoErr.ExitCode)
	}
	if protoErr.Stderr != "ran out of road" {
		t.Errorf("stderr not preserved: %q", protoErr.Stderr)
	}
}

// TestInvokeGarbageOutput verifies undecodable stdout is a protocol error
func TestInvokeGarbageOutput(t *testing.T) {
	w := shWorker(t, `cat >/dev/null; echo "done i guess"`, nil)

	_, err := w.Invoke(context.Background(), attemptRequest(1))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

// TestInvokeTimeout verifies a stuck worker surfaces ErrTimeout
func TestInvokeTimeout(t *testing.T) {
	w := shWorker(t, `sleep 5`, func(cfg *CommandConfig) {
		cfg.Timeout = 150 * time.Millisecond
	})

	start := time.Now()
	_, err := w.Invoke(context.Background(), attemptRequest(1))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took too long to fire: %s", elapsed)
	}
}

// TestInvokeOversizeReport verifies the stdout cap rejects floods
func TestInvokeOversizeReport(t *testing.T) {
	w := shWorker(t, `cat >/dev/null; head -c 9000 /dev/zero`, func(cfg *CommandConfig) {
		cfg.MaxReportBytes = 1024
	})

	_, err := w.Invoke(context.Background(), attemptRequest(1))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

// TestInvokeSerializesOnCapacity verifies the semaphore admits one
// invocation at a time when capacity is 1
func TestInvokeSerializesOnCapacity(t *testing.T) {
	w := shWorker(t, `cat >/dev/null; sleep 0.2; printf '%s' '{}'`, func(cfg *CommandConfig) {
		cfg.MaxConcurrent = 1
	})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := w.Invoke(context.Background(), attemptRequest(n)); err != nil {
				t.Errorf("invoke %d failed: %v", n, err)
			}
		}(i + 1)
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("invocations overlapped: %s elapsed, want at least 400ms", elapsed)
	}
}

// TestInvokePacing verifies the rate limiter spaces invocations out
func TestInvokePacing(t *testing.T) {
	w := shWorker(t, `cat >/dev/null; printf '%s' '{}'`, func(cfg *CommandConfig) {
		cfg.Rate = rate.Limit(5)
	})

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := w.Invoke(context.Background(), attemptRequest(i+1)); err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("second invocation was not paced: %s elapsed", elapsed)
	}
}

// TestNewCommandWorkerValidates verifies the command is required
func TestNewCommandWorkerValidates(t *testing.T) {
	if _, err := NewCommandWorker(CommandConfig{}); err == nil {
		t.Error("empty command should be rejected")
	}
	if _, err := NewCommandWorker(CommandConfig{Command: []string{""}}); err == nil {
		t.Error("blank command should be rejected")
	}
}
