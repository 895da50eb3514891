package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// defaultTimeout bounds one invocation when the caller sets none
	defaultTimeout = 10 * time.Minute

	// defaultMaxReportBytes caps how much stdout a report may occupy
	defaultMaxReportBytes = 4 << 20

	// stderrTailBytes is how much trailing stderr to keep for diagnostics
	stderrTailBytes = 4096
)

// CommandConfig configures the subprocess worker
type CommandConfig struct {
	// Command is the argv to execute, required
	Command []string

	// Dir is the working directory, default current
	Dir string

	// Env entries appended to the inherited environment
	Env []string

	// Timeout bounds one invocation
	Timeout time.Duration

	// MaxReportBytes caps the stdout report size
	MaxReportBytes int64

	// MaxConcurrent bounds invocations across loops sharing this worker
	MaxConcurrent int64

	// Rate paces invocations (events per second); zero means unlimited
	Rate rate.Limit
}

// DefaultCommandConfig returns the defaults used when fields are zero
func DefaultCommandConfig() CommandConfig {
	return CommandConfig{
		Timeout:        defaultTimeout,
		MaxReportBytes: defaultMaxReportBytes,
		MaxConcurrent:  1,
		Rate:           rate.Inf,
	}
}

// CommandWorker invokes an external command once per iteration. The
// request is written to the command's stdin as JSON; the report is read
// from its stdout. A non-zero exit or undecodable output is a protocol
// error; running past the timeout reports ErrTimeout.
type CommandWorker struct {
	cfg     CommandConfig
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewCommandWorker validates the config and fills defaults
func NewCommandWorker(cfg CommandConfig) (*CommandWorker, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, fmt.Errorf("worker command is required")
	}
	def := DefaultCommandConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxReportBytes <= 0 {
		cfg.MaxReportBytes = def.MaxReportBytes
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.Rate <= 0 {
		cfg.Rate = rate.Inf
	}
	return &CommandWorker{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		limiter: rate.NewLimiter(cfg.Rate, 1),
	}, nil
}

// Invoke runs the command for one iteration
func (w *CommandWorker) Invoke(ctx context.Context, req Request) (*Report, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer w.sem.Release(1)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal worker request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, w.cfg.Command[0], w.cfg.Command[1:]...)
	cmd.Dir = w.cfg.Dir
	if len(w.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), w.cfg.Env...)
	}
	cmd.Stdin = bytes.NewReader(payload)

	stdout := &cappedBuffer{max: w.cfg.MaxReportBytes}
	stderr := &cappedBuffer{max: stderrTailBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("no report after %s: %w", w.cfg.Timeout, ErrTimeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ProtocolError{
			Reason:   fmt.Sprintf("worker exited: %v", runErr),
			ExitCode: exitCode,
			Stderr:   stderr.Tail(),
		}
	}
	if stdout.truncated {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("report exceeded %d bytes", w.cfg.MaxReportBytes),
			Stderr: stderr.Tail(),
		}
	}

	report, err := DecodeReport(stdout.Bytes())
	if err != nil {
		var protoErr *ProtocolError
		if errors.As(err, &protoErr) && protoErr.Stderr == "" {
			protoErr.Stderr = stderr.Tail()
		}
		return nil, err
	}
	return report, nil
}

// cappedBuffer keeps at most max bytes and flags overflow instead of
// letting a chatty worker exhaust memory
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.truncated = true
		b.buf.Write(p[:remaining])
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

// Tail returns the buffered text trimmed for one-line diagnostics
func (b *cappedBuffer) Tail() string {
	return strings.TrimSpace(b.buf.String())
}
