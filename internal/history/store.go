// Package history persists one row per dispatched tool call, giving clients
// and the watch TUI a diagnostic trail that outlives the in-memory workspace
// records.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded tool call.
type Entry struct {
	ID          string    `json:"id"`
	Tool        string    `json:"tool"`
	Target      string    `json:"target,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Status      string    `json:"status"` // ok | error
	ErrorKind   string    `json:"error_kind,omitempty"`
	Message     string    `json:"message,omitempty"`
	ExitCode    *int      `json:"exit_code,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
	StderrTail  string    `json:"stderr_tail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store writes and reads invocation log rows.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts one entry. A zero ID and CreatedAt are filled in.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var exitCode any
	if e.ExitCode != nil {
		exitCode = *e.ExitCode
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO invocation_log
  (id, tool, target, fingerprint, status, error_kind, message, exit_code, duration_ms, stderr_tail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.ID, e.Tool, e.Target, e.Fingerprint, e.Status, e.ErrorKind, e.Message,
		exitCode, e.Duration.Milliseconds(), e.StderrTail, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("record invocation: %w", err)
	}
	return e.ID, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, tool, target, fingerprint, status, error_kind, message, exit_code, duration_ms, stderr_tail, created_at
FROM invocation_log
ORDER BY created_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocation log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			exitCode   sql.NullInt64
			durationMS int64
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.Tool, &e.Target, &e.Fingerprint, &e.Status,
			&e.ErrorKind, &e.Message, &exitCode, &durationMS, &e.StderrTail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan invocation row: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			e.ExitCode = &code
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = ts
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune removes entries older than retention.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}

	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM invocation_log WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune invocation log: %w", err)
	}
	return res.RowsAffected()
}
