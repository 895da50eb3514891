package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Lock is the JSON lock file claiming exclusive write access to one
// loop id. While a live process holds it, no second controller may
// append iterations for that loop.
type Lock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	path string
}

// lockPath returns the lock file path for a loop id
func lockPath(dir, id string) string {
	return filepath.Join(dir, id+".lock")
}

// AcquireLock claims exclusive control of a loop id. A lock whose
// holder process is no longer alive is stale and gets overwritten.
func AcquireLock(dir, id string) (*Lock, error) {
	path := lockPath(dir, id)

	if data, err := os.ReadFile(path); err == nil {
		var existing Lock
		if json.Unmarshal(data, &existing) == nil {
			if isProcessAlive(existing.PID, existing.Hostname) {
				return nil, fmt.Errorf("loop %s is held by PID %d on %s (started %s): %w",
					id, existing.PID, existing.Hostname,
					existing.StartedAt.Format(time.RFC3339), ErrLocked)
			}
			// Stale lock, overwrite
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := &Lock{
		Holder:    "churn",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now().UTC(),
		path:      path,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	return lock, nil
}

// Release removes the lock file. Call on shutdown (use defer).
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// HolderAlive reports whether a live process currently holds the lock
// for id. Used to tell a crashed loop from one that is still running.
func HolderAlive(dir, id string) bool {
	data, err := os.ReadFile(lockPath(dir, id))
	if err != nil {
		return false
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return false
	}
	return isProcessAlive(lock.PID, lock.Hostname)
}

// isProcessAlive checks if a process with the given PID exists on the
// given hostname. Remote hosts cannot be checked and are assumed alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// Process exists but signaling is not permitted
	if err == syscall.EPERM {
		return true
	}
	return false
}
