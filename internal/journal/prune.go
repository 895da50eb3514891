package journal

import (
	"context"
	"fmt"
	"time"
)

// RetentionPolicy bounds how much history Prune keeps. Zero values
// disable the corresponding limit.
type RetentionPolicy struct {
	// MaxAge deletes events older than this
	MaxAge time.Duration

	// PerLoopLimit keeps at most this many recent events per loop
	PerLoopLimit int

	// GlobalLimit keeps at most this many recent events in total
	GlobalLimit int
}

// Prune deletes events outside the retention policy and returns how
// many rows were removed. Newest events always survive.
func (j *Journal) Prune(ctx context.Context, policy RetentionPolicy) (int64, error) {
	var removed int64

	if policy.MaxAge > 0 {
		cutoff := time.Now().UTC().Add(-policy.MaxAge).Format(time.RFC3339Nano)
		res, err := j.db.ExecContext(ctx,
			`DELETE FROM loop_events WHERE datetime(created_at) < datetime(?)`, cutoff)
		if err != nil {
			return removed, fmt.Errorf("failed to prune events by age: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if policy.PerLoopLimit > 0 {
		res, err := j.db.ExecContext(ctx, `
			DELETE FROM loop_events WHERE rowid IN (
				SELECT rowid FROM (
					SELECT rowid, ROW_NUMBER() OVER (
						PARTITION BY loop_id ORDER BY rowid DESC
					) AS rn FROM loop_events
				) WHERE rn > ?
			)`, policy.PerLoopLimit)
		if err != nil {
			return removed, fmt.Errorf("failed to prune events per loop: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if policy.GlobalLimit > 0 {
		res, err := j.db.ExecContext(ctx, `
			DELETE FROM loop_events WHERE rowid NOT IN (
				SELECT rowid FROM loop_events ORDER BY rowid DESC LIMIT ?
			)`, policy.GlobalLimit)
		if err != nil {
			return removed, fmt.Errorf("failed to prune events globally: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	return removed, nil
}
