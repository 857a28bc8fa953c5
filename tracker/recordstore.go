/*
recordstore.go - The authoritative record collection

PURPOSE:
  Owns the ordered collection of deployment records and the id counter,
  and mirrors both to a Persistence backend after every committed change.

PERSISTENCE IS BEST-EFFORT:
  - Load never fails. Missing, unreadable or corrupt data yields an empty
    collection and a logged warning.
  - A failed save does NOT roll back the in-memory change. The mutating
    call returns a *PersistenceError and the store stays dirty until a
    later save (or SaveIfDirty from the backup scheduler) succeeds.

ID COUNTER:
  NextID is monotonic for the life of the process. Rolled-back
  transactions, imports, restores and clears never move it backwards, so
  an id is never issued twice.

TRANSACTIONS:
  WithTx runs fn against a private copy of the collection. If fn returns
  an error nothing changes; otherwise the copy replaces the collection
  and is saved.

    err := store.WithTx(ctx, func(tx *tracker.Tx) error {
        rec := tracker.NewRecord()
        rec.ID = tx.NextID()
        tx.Append(rec)
        return nil
    })

SEE ALSO:
  - store.go: Persistence contract and envelope
  - editor.go, bulk.go: Mutations built on WithTx
*/
package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// RecordStore holds the collection in memory and persists it.
type RecordStore struct {
	mu          sync.RWMutex
	persistence Persistence
	key         string
	logger      *slog.Logger

	records   []Record
	nextID    int
	lastSaved time.Time
	dirty     bool

	// OnSave, when set, observes every save attempt (err is nil on success).
	OnSave func(err error)

	now func() time.Time
}

// NewRecordStore creates an empty store. Call Load before use.
// An empty key selects DefaultStorageKey; a nil logger selects slog.Default.
func NewRecordStore(p Persistence, key string, logger *slog.Logger) *RecordStore {
	if key == "" {
		key = DefaultStorageKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{
		persistence: p,
		key:         key,
		logger:      logger.With(slog.String("component", "recordstore")),
		records:     []Record{},
		nextID:      1,
		now:         time.Now,
	}
}

// =============================================================================
// LOAD / SEED / SAVE
// =============================================================================

// Load replaces the in-memory state with the persisted envelope and
// returns the loaded collection. It never fails.
func (s *RecordStore) Load(ctx context.Context) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = []Record{}
	if s.persistence == nil {
		return []Record{}
	}

	data, err := s.persistence.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("load failed, starting empty", slog.String("key", s.key), slog.Any("error", err))
		return []Record{}
	}
	if len(data) == 0 {
		return []Record{}
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("stored data unreadable, starting empty", slog.String("key", s.key), slog.Any("error", err))
		return []Record{}
	}

	records := env.Locations
	seen := make(map[int]bool, len(records))
	for i := range records {
		records[i].normalize()
		if records[i].ID <= 0 || seen[records[i].ID] {
			records[i].ID = 0
		}
		seen[records[i].ID] = true
	}
	s.records = records
	s.bumpCounter(env.NextLocationID)
	s.assignMissingIDs()
	s.lastSaved = env.LastSaved

	s.logger.Info("collection loaded", slog.Int("records", len(s.records)), slog.Int("next_id", s.nextID))
	return cloneRecords(s.records)
}

// SeedIfEmpty installs seed as the collection when the store is empty.
// Seed records get id = slNo = position + 1. A non-empty store is left
// untouched and returned as is.
func (s *RecordStore) SeedIfEmpty(ctx context.Context, seed []Record) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) > 0 || len(seed) == 0 {
		return cloneRecords(s.records)
	}

	records := cloneRecords(seed)
	for i := range records {
		records[i].ID = i + 1
		records[i].SlNo = i + 1
		records[i].normalize()
	}
	s.records = records
	s.bumpCounter(len(records) + 1)
	s.logger.Info("seeded empty collection", slog.Int("records", len(records)))

	// Seed persistence failure is a warning only.
	_ = s.saveLocked(ctx)
	return cloneRecords(s.records)
}

// Save persists the current collection and id counter.
func (s *RecordStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// SaveIfDirty retries a previously failed save. It is a no-op when the
// last save succeeded.
func (s *RecordStore) SaveIfDirty(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked(ctx)
}

func (s *RecordStore) saveLocked(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	env := Envelope{
		Locations:      s.records,
		NextLocationID: s.nextID,
		LastSaved:      s.now().UTC(),
	}
	data, err := json.Marshal(env)
	if err == nil {
		err = s.persistence.Put(ctx, s.key, data)
	}
	if s.OnSave != nil {
		s.OnSave(err)
	}
	if err != nil {
		s.dirty = true
		s.logger.Warn("save failed, changes kept in memory", slog.String("key", s.key), slog.Any("error", err))
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	s.dirty = false
	s.lastSaved = env.LastSaved
	return nil
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Records returns a copy of the collection in order.
func (s *RecordStore) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// Get returns the record with the given id.
func (s *RecordStore) Get(id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.records, id); i >= 0 {
		return s.records[i], nil
	}
	return Record{}, &NotFoundError{ID: id}
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// NextID reserves and returns the next record id.
func (s *RecordStore) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeID()
}

// PeekNextID returns the id NextID would hand out, without reserving it.
func (s *RecordStore) PeekNextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// LastSaved returns the time of the last successful save.
func (s *RecordStore) LastSaved() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSaved
}

// Dirty reports whether in-memory changes are waiting to be saved.
func (s *RecordStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *RecordStore) takeID() int {
	id := s.nextID
	s.nextID++
	return id
}

// bumpCounter raises the counter to at least n and above every id held.
func (s *RecordStore) bumpCounter(n int) {
	if n > s.nextID {
		s.nextID = n
	}
	for _, r := range s.records {
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
}

func (s *RecordStore) assignMissingIDs() {
	for i := range s.records {
		if s.records[i].ID == 0 {
			s.records[i].ID = s.takeID()
		}
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Tx is a private working copy of the collection inside WithTx.
type Tx struct {
	store   *RecordStore
	records []Record
}

// Records returns the working copy. Modifying elements in place is allowed.
func (tx *Tx) Records() []Record { return tx.records }

// Replace swaps the whole working copy.
func (tx *Tx) Replace(records []Record) { tx.records = records }

// Append adds a record at the end of the working copy.
func (tx *Tx) Append(r Record) { tx.records = append(tx.records, r) }

// NextID reserves an id. Reserved ids are spent even if the tx fails.
func (tx *Tx) NextID() int { return tx.store.takeID() }

// Find returns the index of id in the working copy, or -1.
func (tx *Tx) Find(id int) int { return indexOf(tx.records, id) }

// WithTx applies fn to a working copy and commits it when fn succeeds.
// A save failure after commit is returned as *PersistenceError.
func (s *RecordStore) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{store: s, records: cloneRecords(s.records)}
	if err := fn(tx); err != nil {
		return err
	}
	s.records = tx.records
	s.bumpCounter(0)
	return s.saveLocked(ctx)
}

// =============================================================================
// WHOLE-COLLECTION OPERATIONS
// =============================================================================

// ReplaceAll discards the collection and installs records with fresh ids
// and slNo 1..N. Used by confirmed spreadsheet imports.
func (s *RecordStore) ReplaceAll(ctx context.Context, records []Record) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		out := cloneRecords(records)
		for i := range out {
			out[i].ID = tx.NextID()
			out[i].normalize()
		}
		renumber(out)
		tx.Replace(out)
		return nil
	})
}

// Backup snapshots the collection in the user-facing backup format.
func (s *RecordStore) Backup() Backup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Backup{
		Locations:      cloneRecords(s.records),
		NextLocationID: s.nextID,
		BackupDate:     s.now().UTC(),
		Version:        BackupVersion,
	}
}

// Restore replaces the collection with a backup. Record ids from the
// backup are kept when valid and unique; the counter only moves forward.
func (s *RecordStore) Restore(ctx context.Context, b Backup) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		out := cloneRecords(b.Locations)
		seen := make(map[int]bool, len(out))
		for i := range out {
			out[i].normalize()
			if out[i].ID <= 0 || seen[out[i].ID] {
				out[i].ID = 0
				continue
			}
			seen[out[i].ID] = true
		}
		// Counter must clear every kept id before reassigning the rest.
		s.bumpCounter(b.NextLocationID)
		for _, r := range out {
			if r.ID >= s.nextID {
				s.nextID = r.ID + 1
			}
		}
		for i := range out {
			if out[i].ID == 0 {
				out[i].ID = tx.NextID()
			}
		}
		renumber(out)
		tx.Replace(out)
		return nil
	})
}

// Clear removes every record. The id counter is kept.
func (s *RecordStore) Clear(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		tx.Replace([]Record{})
		return nil
	})
}
