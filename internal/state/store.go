// Package state persists loop state durably and atomically, and
// enforces the one-writer-per-loop discipline through lock files.
package state

import (
	"errors"
	"fmt"

	"github.com/churn-dev/churn/internal/types"
)

// Sentinel errors callers check with errors.Is
var (
	// ErrNotFound means no state file exists for the requested id
	ErrNotFound = errors.New("loop state not found")

	// ErrAlreadyTerminal means the loop finished and cannot be resumed
	ErrAlreadyTerminal = errors.New("loop is terminal and cannot be resumed")

	// ErrLocked means another live process holds the loop's lock
	ErrLocked = errors.New("loop is locked by another process")
)

// ParseError wraps a corrupt or invariant-violating state file
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("corrupt state file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Store is the durable home of LoopState. The loop controller is the
// only writer; everything else reads.
type Store interface {
	// Save atomically persists the state. A crash mid-save never
	// leaves a corrupt file.
	Save(state *types.LoopState) error

	// Load returns the state for id, ErrNotFound, or a ParseError.
	Load(id string) (*types.LoopState, error)

	// Resume loads the state for id and validates it may re-enter the
	// controller. Terminal states return ErrAlreadyTerminal.
	Resume(id string) (*types.LoopState, error)

	// List returns every readable state in the store.
	List() ([]*types.LoopState, error)

	// Path returns the state file path for id, for user-facing output.
	Path(id string) string

	// SignalAbort asks the running controller for id to pause between
	// iterations.
	SignalAbort(id string) error

	// AbortRequested reports whether an abort signal is pending for id.
	AbortRequested(id string) bool

	// ClearAbort consumes a pending abort signal.
	ClearAbort(id string) error
}
