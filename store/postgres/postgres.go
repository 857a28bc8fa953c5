// Package postgres provides a Postgres-backed implementation of the tracker
// persistence interfaces for multi-instance deployments.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/warp/pos-tracker/tracker"
)

var (
	_ tracker.Persistence = (*Store)(nil)
	_ tracker.ActivityLog = (*Store)(nil)
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/postracker?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps documents in a JSONB state table keyed by bucket.
type Store struct {
	db *sql.DB
}

// New opens a store using dsn (falls back to defaultDSN) and ensures the
// schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state (
			bucket TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS activity (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			actor TEXT,
			detail TEXT,
			item_count INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Get returns the document stored under key, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = $1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state %q: %w", key, err)
	}
	return payload, nil
}

// Put upserts the document under key. The value must be valid JSON.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("state %q: payload is not valid JSON", key)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (bucket, payload, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("upsert state %q: %w", key, err)
	}
	return nil
}

// AppendActivity records one activity entry.
func (s *Store) AppendActivity(ctx context.Context, a tracker.Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, kind, actor, detail, item_count, error, created_at)
		VALUES ($1, $2, NULLIF($3::text, ''), NULLIF($4::text, ''), $5, NULLIF($6::text, ''), COALESCE($7::timestamptz, now()))`,
		a.ID, a.Kind, a.Actor, a.Detail, a.Count, a.Error, nullTime(a),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit entries, newest first.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]tracker.Activity, error) {
	query := `SELECT id, kind, COALESCE(actor, ''), COALESCE(detail, ''), item_count,
		COALESCE(error, ''), created_at FROM activity ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []tracker.Activity{}
	for rows.Next() {
		var a tracker.Activity
		if err := rows.Scan(&a.ID, &a.Kind, &a.Actor, &a.Detail, &a.Count, &a.Error, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullTime(a tracker.Activity) sql.NullTime {
	if a.CreatedAt.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: a.CreatedAt, Valid: true}
}
