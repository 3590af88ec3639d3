// Package audit keeps a persistent trail of backend changes: logins and
// rule additions and deletions.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"grimm.is/rulegate/internal/clock"
)

// DefaultRetention is how long events are kept when no retention is given.
const DefaultRetention = 90 * 24 * time.Hour

// Actions recorded by the backend.
const (
	ActionLogin       = "login"
	ActionLoginFailed = "login.failed"
	ActionRuleAdd     = "rule.add"
	ActionRuleDelete  = "rule.delete"
)

// Event represents a single audit log entry.
type Event struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Details   map[string]any `json:"details,omitempty"`
	Status    int            `json:"status"`
	IP        string         `json:"ip,omitempty"`
}

// Filter selects events for Query. Zero fields match everything.
type Filter struct {
	Since  time.Time
	Action string
	Limit  int
}

// Store persists audit events in a table of an existing sqlite database.
type Store struct {
	db        *sql.DB
	retention time.Duration
}

// NewStore creates the audit table in db if needed.
func NewStore(db *sql.DB, retention time.Duration) (*Store, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			action TEXT NOT NULL,
			resource TEXT NOT NULL,
			details TEXT,
			status INTEGER DEFAULT 0,
			ip TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_events(action);
	`)
	if err != nil {
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{db: db, retention: retention}, nil
}

// Write persists an audit event. A zero timestamp means now.
func (s *Store) Write(ctx context.Context, evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = clock.Now()
	}

	var details sql.NullString
	if evt.Details != nil {
		b, err := json.Marshal(evt.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (timestamp, action, resource, details, status, ip)
		VALUES (?, ?, ?, ?, ?, ?)
	`, evt.Timestamp.UTC(), evt.Action, evt.Resource, details, evt.Status, evt.IP)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]Event, error) {
	query := `SELECT id, timestamp, action, resource, details, status, ip
		FROM audit_events WHERE timestamp >= ?`
	args := []any{f.Since.UTC()}

	if f.Action != "" {
		query += " AND action = ?"
		args = append(args, f.Action)
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var evt Event
		var details, ip sql.NullString
		if err := rows.Scan(&evt.ID, &evt.Timestamp, &evt.Action, &evt.Resource, &details, &evt.Status, &ip); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		evt.IP = ip.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &evt.Details); err != nil {
				return nil, fmt.Errorf("decode audit details of event %d: %w", evt.ID, err)
			}
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Prune removes events older than the retention period.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := clock.Now().Add(-s.retention).UTC()
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the total number of events in the store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&count)
	return count, err
}
