package devbackend

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/rulegate/internal/audit"
	"grimm.is/rulegate/internal/clock"
	"grimm.is/rulegate/internal/rules"
)

const schema = `
	CREATE TABLE IF NOT EXISTS rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule TEXT NOT NULL,
		service_name TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rules_service ON rules(service_name);
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL
	);
`

// Store keeps rules, login sessions and the audit trail in sqlite.
type Store struct {
	db    *sql.DB
	audit *audit.Store
}

// OpenStore opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open rule db: %w", err)
	}
	// Every connection to :memory: is a different database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rule tables: %w", err)
	}
	trail, err := audit.NewStore(db, audit.DefaultRetention)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, audit: trail}, nil
}

// Audit returns the audit trail kept in the same database.
func (s *Store) Audit() *audit.Store {
	return s.audit
}

// Ping checks that the database still answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListRules returns every rule, or the rules of one service when service is
// not empty, in insertion order.
func (s *Store) ListRules(ctx context.Context, service string) ([]rules.Rule, error) {
	query := `SELECT id, rule, service_name FROM rules`
	var args []any
	if service != "" {
		query += ` WHERE service_name = ?`
		args = append(args, service)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	list := []rules.Rule{}
	for rows.Next() {
		var r rules.Rule
		if err := rows.Scan(&r.ID, &r.Payload, &r.ServiceName); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// InsertRule stores a base64 payload for service.
func (s *Store) InsertRule(ctx context.Context, service, payload string) (rules.Rule, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO rules (rule, service_name) VALUES (?, ?)`, payload, service)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return rules.Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	return rules.Rule{ID: id, Payload: payload, ServiceName: service}, nil
}

// DeleteRule removes a rule. It reports false when no rule had that id.
func (s *Store) DeleteRule(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	return n > 0, nil
}

// CreateSession records a login token.
func (s *Store) CreateSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (token, created_at) VALUES (?, ?)`, token, clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ValidSession reports whether token was issued and is younger than ttl.
func (s *Store) ValidSession(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	var created time.Time
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM sessions WHERE token = ?`, token).Scan(&created)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return clock.Since(created) < ttl, nil
}

// PruneSessions deletes sessions older than ttl.
func (s *Store) PruneSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, clock.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}
