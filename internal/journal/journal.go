// Package journal persists loop lifecycle events to a SQLite database
// in the state directory, giving every loop an inspectable history feed.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/churn-dev/churn/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS loop_events (
    id TEXT PRIMARY KEY,
    loop_id TEXT NOT NULL,
    iteration INTEGER NOT NULL DEFAULT 0,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_loop_events_loop ON loop_events(loop_id);
CREATE INDEX IF NOT EXISTS idx_loop_events_type ON loop_events(type);
`

// Journal is a SQLite-backed event log. It implements events.Sink.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path. Use ":memory:"
// for tests.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		path = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the database handle
func (j *Journal) Close() error {
	return j.db.Close()
}

// Emit implements events.Sink
func (j *Journal) Emit(event *events.Event) error {
	return j.Append(context.Background(), event)
}

// Append stores one event
func (j *Journal) Append(ctx context.Context, event *events.Event) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO loop_events (
			id, loop_id, iteration, type, severity, message, data, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = j.db.ExecContext(ctx, query,
		event.ID,
		event.LoopID,
		event.Iteration,
		string(event.Type),
		string(event.Severity),
		event.Message,
		string(dataJSON),
		event.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, loop=%s): %w", event.Type, event.LoopID, err)
	}
	return nil
}

// Filter narrows event queries. Zero values match everything.
type Filter struct {
	LoopID   string
	Type     events.EventType
	Severity events.EventSeverity
	Limit    int
}

// Recent returns matching events in chronological order, keeping the
// newest Limit entries (default 50).
func (j *Journal) Recent(ctx context.Context, filter Filter) ([]*events.Event, error) {
	query := `
		SELECT id, loop_id, iteration, type, severity, message, data, created_at
		FROM loop_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.LoopID != "" {
		query += " AND loop_id = ?"
		args = append(args, filter.LoopID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var newestFirst []*events.Event
	for rows.Next() {
		var ev events.Event
		var dataJSON, createdAt string
		if err := rows.Scan(&ev.ID, &ev.LoopID, &ev.Iteration, &ev.Type,
			&ev.Severity, &ev.Message, &dataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if dataJSON != "" && dataJSON != "null" {
			if err := json.Unmarshal([]byte(dataJSON), &ev.Data); err != nil {
				return nil, fmt.Errorf("failed to parse event data: %w", err)
			}
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
		}
		ev.Timestamp = ts
		newestFirst = append(newestFirst, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	// Reverse into chronological order
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst, nil
}
