/*
store.go - Persistence contract and on-disk envelope

PURPOSE:
  The tracker persists its whole collection as one JSON document under
  a logical key. Any key-value backend can serve: SQLite, Postgres or
  process memory for tests.

ENVELOPE FORMAT:
  {
    "locations":      [ ...records... ],
    "nextLocationId": 42,
    "lastSaved":      "2025-03-01T10:00:00Z"
  }

BACKUP FORMAT:
  Same records plus "backupDate" and "version": "1.0". Backups are
  downloaded by users and restored verbatim.

SEE ALSO:
  - recordstore.go: Reads and writes the envelope
  - tracker/store/memory.go: In-memory Persistence
  - store/sqlite, store/postgres: Durable Persistence
*/
package tracker

import (
	"context"
	"time"
)

// DefaultStorageKey is the logical key the record envelope is stored under.
const DefaultStorageKey = "advancedPOSTrackerData"

// BackupVersion is written into every backup document.
const BackupVersion = "1.0"

// Persistence is a minimal key-value store for whole documents.
type Persistence interface {
	// Get returns the stored bytes, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
}

// Envelope is the persisted form of the collection.
type Envelope struct {
	Locations      []Record  `json:"locations"`
	NextLocationID int       `json:"nextLocationId"`
	LastSaved      time.Time `json:"lastSaved"`
}

// Backup is the user-facing export of the collection.
type Backup struct {
	Locations      []Record  `json:"locations"`
	NextLocationID int       `json:"nextLocationId"`
	BackupDate     time.Time `json:"backupDate"`
	Version        string    `json:"version"`
}

// =============================================================================
// ACTIVITY LOG - audit trail of whole-collection operations
// =============================================================================

// Activity kinds.
const (
	ActivityImport  = "import"
	ActivityRestore = "restore"
	ActivityClear   = "clear"
	ActivityBulk    = "bulk_update"
	ActivityBackup  = "backup"
)

// Activity records one destructive or bulk operation for later review.
type Activity struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Count     int       `json:"count"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityLog persists Activity entries. Backends that support it
// implement this next to Persistence.
type ActivityLog interface {
	AppendActivity(ctx context.Context, a Activity) error
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
}
