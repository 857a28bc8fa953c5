/*
Package sqlite provides a SQLite-backed implementation of the tracker
persistence interfaces.

PURPOSE:
  Stores the record envelope as a single JSON document per logical key
  and keeps an append-only activity log of imports, restores, clears and
  bulk updates. This is the default backend for single-node installs.

INTERFACES IMPLEMENTED:
  tracker.Persistence:  Whole-document key-value storage
  tracker.ActivityLog:  Audit trail of collection-wide operations

KEY TABLES:
  kv:        key TEXT PRIMARY KEY, value BLOB, updated_at TEXT
  activity:  Append-only log, newest first by created_at

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The RecordStore above already
  serializes writes; the mutex keeps direct callers (scheduler, tests)
  honest as well.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  db, err := sqlite.New("./data/postracker.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

  records := tracker.NewRecordStore(db, "", logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - tracker/store.go: Interface definitions and envelope format
  - tracker/store/memory.go: In-memory implementation for testing
  - store/postgres: Same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/pos-tracker/tracker"
)

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements the tracker storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Whole documents keyed by logical storage key
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		actor TEXT,
		detail TEXT,
		item_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_created_at
		ON activity(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Get returns the document stored under key, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return value, nil
}

// Put upserts the document stored under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in ascending order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

// AppendActivity records one activity entry. Ids must be unique.
func (s *Store) AppendActivity(ctx context.Context, a tracker.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO activity (id, kind, actor, detail, item_count, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Kind, nullString(a.Actor), nullString(a.Detail), a.Count,
		nullString(a.Error), a.CreatedAt.UTC().Format(timeLayout),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("activity %s already recorded", a.ID)
	}
	return err
}

// RecentActivity returns up to limit entries, newest first. limit <= 0
// returns everything.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]tracker.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, kind, actor, detail, item_count, error, created_at
		FROM activity
		ORDER BY created_at DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []tracker.Activity{}
	for rows.Next() {
		var a tracker.Activity
		var actor, detail, errText sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Kind, &actor, &detail, &a.Count, &errText, &createdAt); err != nil {
			return nil, err
		}
		a.Actor = actor.String
		a.Detail = detail.String
		a.Error = errText.String
		a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
