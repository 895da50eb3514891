package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/churn-dev/churn/internal/types"
)

// DefaultDir is the state directory used when none is configured
const DefaultDir = ".churn"

// FileStore keeps one JSON file per loop id under a state directory.
// Saves are write-temp-then-rename so a crash mid-write leaves the
// previous checkpoint intact.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the state directory if needed and returns a store
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the state directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the state file path for a loop id
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save atomically persists the state, validating invariants first
func (s *FileStore) Save(state *types.LoopState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid state: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	file, err := os.CreateTemp(s.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	name := file.Name()
	defer func() {
		_ = os.Remove(name)
	}()

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(name, s.Path(state.ID)); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Load reads and validates the state for id
func (s *FileStore) Load(id string) (*types.LoopState, error) {
	path := s.Path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loop %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state types.LoopState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := state.Validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &state, nil
}

// Resume loads the state for id and validates it can re-enter the
// controller. Terminal loops return ErrAlreadyTerminal. A state still
// marked running is allowed through: it is a crash leftover whenever
// the exclusive lock has no live holder, and the lock acquire decides.
func (s *FileStore) Resume(id string) (*types.LoopState, error) {
	state, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if state.Status.IsTerminal() {
		return nil, fmt.Errorf("loop %s has status %s: %w", id, state.Status, ErrAlreadyTerminal)
	}
	return state, nil
}

// List returns every readable state in the directory, newest first.
// Unreadable files are skipped; listing is a best-effort view.
func (s *FileStore) List() ([]*types.LoopState, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var states []*types.LoopState
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		state, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})
	return states, nil
}

// abortPath returns the abort marker path for a loop id
func (s *FileStore) abortPath(id string) string {
	return filepath.Join(s.dir, id+".abort")
}

// SignalAbort asks a running controller to pause between iterations
func (s *FileStore) SignalAbort(id string) error {
	if err := os.WriteFile(s.abortPath(id), []byte{}, 0644); err != nil {
		return fmt.Errorf("failed to write abort marker: %w", err)
	}
	return nil
}

// AbortRequested reports whether an abort marker exists for id
func (s *FileStore) AbortRequested(id string) bool {
	_, err := os.Stat(s.abortPath(id))
	return err == nil
}

// ClearAbort removes the abort marker, if any
func (s *FileStore) ClearAbort(id string) error {
	if err := os.Remove(s.abortPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove abort marker: %w", err)
	}
	return nil
}
