package tracker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-tracker/tracker"
	"github.com/warp/pos-tracker/tracker/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T, seed ...tracker.Record) (*tracker.RecordStore, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	rs := tracker.NewRecordStore(mem, "", nil)
	rs.Load(context.Background())
	if len(seed) > 0 {
		rs.SeedIfEmpty(context.Background(), seed)
	}
	return rs, mem
}

func office(division, name string) tracker.Record {
	r := tracker.NewRecord()
	r.Division = division
	r.PostOfficeName = name
	r.NumberOfPosToBeDeployed = 1
	return r
}

func storedEnvelope(t *testing.T, mem *store.Memory) tracker.Envelope {
	t.Helper()
	data, err := mem.Get(context.Background(), tracker.DefaultStorageKey)
	require.NoError(t, err)
	require.NotNil(t, data, "envelope should be persisted")
	var env tracker.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// =============================================================================
// LOAD / SEED
// =============================================================================

func TestRecordStore_Load_MissingKey_Empty(t *testing.T) {
	// GIVEN: A backend with nothing stored
	// WHEN: Loading
	// THEN: The collection is empty and the counter starts at 1

	rs, _ := newTestStore(t)

	assert.Empty(t, rs.Records())
	assert.Equal(t, 1, rs.PeekNextID())
}

func TestRecordStore_Load_CorruptData_Empty(t *testing.T) {
	// GIVEN: Garbage stored under the key
	// WHEN: Loading
	// THEN: Load does not fail and yields an empty collection

	mem := store.NewMemory()
	require.NoError(t, mem.Put(context.Background(), tracker.DefaultStorageKey, []byte("{not json")))

	rs := tracker.NewRecordStore(mem, "", nil)
	loaded := rs.Load(context.Background())

	assert.Empty(t, loaded)
	assert.Equal(t, 0, rs.Len())
}

func TestRecordStore_Load_BackendError_Empty(t *testing.T) {
	// GIVEN: A backend that fails every call
	// WHEN: Loading
	// THEN: The collection is empty, no error escapes

	mem := store.NewMemory()
	mem.Fail(errors.New("disk gone"))

	rs := tracker.NewRecordStore(mem, "", nil)
	assert.Empty(t, rs.Load(context.Background()))
}

func TestRecordStore_Load_NormalizesAndRepairsIDs(t *testing.T) {
	// GIVEN: A stored envelope with an unknown status, a duplicate id,
	//        a DD/MM/YYYY date and a stale counter
	// WHEN: Loading
	// THEN: Status falls back to the default, the duplicate gets a fresh id,
	//       the date is stored as ISO and the counter clears every id

	env := `{"locations":[
		{"id":4,"division":"A","postOfficeName":"One","installationStatus":"weird","dateOfReceiptOfDevice":"05/03/2025"},
		{"id":4,"division":"A","postOfficeName":"Two","installationStatus":"completed"}
	],"nextLocationId":2}`
	mem := store.NewMemory()
	require.NoError(t, mem.Put(context.Background(), tracker.DefaultStorageKey, []byte(env)))

	rs := tracker.NewRecordStore(mem, "", nil)
	loaded := rs.Load(context.Background())

	require.Len(t, loaded, 2)
	assert.Equal(t, tracker.InstallPending, loaded[0].InstallationStatus)
	assert.Equal(t, tracker.FuncNotTested, loaded[0].FunctionalityStatus)
	assert.Equal(t, "2025-03-05", loaded[0].DateOfReceiptOfDevice)
	assert.Equal(t, tracker.InstallCompleted, loaded[1].InstallationStatus)
	assert.Equal(t, 4, loaded[0].ID)
	assert.Equal(t, 5, loaded[1].ID, "duplicate id is reassigned")
	assert.Equal(t, 6, rs.PeekNextID())
}

func TestRecordStore_SeedIfEmpty_AssignsPositions(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Seeding three records
	// THEN: id = slNo = position + 1, counter = 4, the seed is persisted

	rs, mem := newTestStore(t, office("A", "One"), office("B", "Two"), office("A", "Three"))

	recs := rs.Records()
	require.Len(t, recs, 3)
	for i, r := range recs {
		assert.Equal(t, i+1, r.ID)
		assert.Equal(t, i+1, r.SlNo)
	}
	assert.Equal(t, 4, rs.PeekNextID())

	env := storedEnvelope(t, mem)
	assert.Len(t, env.Locations, 3)
	assert.Equal(t, 4, env.NextLocationID)
}

func TestRecordStore_SeedIfEmpty_NonEmptyUntouched(t *testing.T) {
	// GIVEN: A store that already holds a record
	// WHEN: Seeding again
	// THEN: Nothing changes

	rs, _ := newTestStore(t, office("A", "One"))
	out := rs.SeedIfEmpty(context.Background(), []tracker.Record{office("B", "X"), office("B", "Y")})

	assert.Len(t, out, 1)
	assert.Equal(t, "One", rs.Records()[0].PostOfficeName)
}

func TestRecordStore_RoundTripThroughBackend(t *testing.T) {
	// GIVEN: A seeded store
	// WHEN: A second store loads from the same backend
	// THEN: It sees the same records and counter

	rs, mem := newTestStore(t, office("A", "One"), office("B", "Two"))

	other := tracker.NewRecordStore(mem, "", nil)
	loaded := other.Load(context.Background())

	assert.Equal(t, rs.Records(), loaded)
	assert.Equal(t, rs.PeekNextID(), other.PeekNextID())
}

// =============================================================================
// SAVE FAILURE
// =============================================================================

func TestRecordStore_SaveFailure_KeepsChangeAndRetries(t *testing.T) {
	// GIVEN: A seeded store whose backend starts failing
	// WHEN: A transaction commits
	// THEN: The change is visible, a PersistenceError is returned, the store
	//       is dirty, and SaveIfDirty succeeds once the backend recovers

	rs, mem := newTestStore(t, office("A", "One"))
	var observed []error
	rs.OnSave = func(err error) { observed = append(observed, err) }

	mem.Fail(errors.New("quota exceeded"))
	err := rs.WithTx(context.Background(), func(tx *tracker.Tx) error {
		r := office("B", "Two")
		r.ID = tx.NextID()
		tx.Append(r)
		return nil
	})

	require.Error(t, err)
	assert.True(t, tracker.IsPersistenceWarning(err))
	var perr *tracker.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "save", perr.Op)
	assert.Equal(t, 2, rs.Len())
	assert.True(t, rs.Dirty())

	mem.Fail(nil)
	require.NoError(t, rs.SaveIfDirty(context.Background()))
	assert.False(t, rs.Dirty())
	assert.Len(t, storedEnvelope(t, mem).Locations, 2)

	require.Len(t, observed, 2)
	assert.Error(t, observed[0])
	assert.NoError(t, observed[1])
}

func TestRecordStore_SaveIfDirty_CleanIsNoop(t *testing.T) {
	// GIVEN: A store whose last save succeeded
	// WHEN: SaveIfDirty runs
	// THEN: No write happens

	rs, mem := newTestStore(t, office("A", "One"))
	before := mem.Puts()

	require.NoError(t, rs.SaveIfDirty(context.Background()))
	assert.Equal(t, before, mem.Puts())
}

// =============================================================================
// TRANSACTIONS AND COUNTER
// =============================================================================

func TestRecordStore_WithTx_ErrorRollsBack(t *testing.T) {
	// GIVEN: A seeded store
	// WHEN: A transaction modifies the copy then fails
	// THEN: The collection is unchanged but the reserved id stays spent

	rs, _ := newTestStore(t, office("A", "One"))
	boom := errors.New("boom")

	err := rs.WithTx(context.Background(), func(tx *tracker.Tx) error {
		tx.Records()[0].PostOfficeName = "Changed"
		tx.NextID()
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "One", rs.Records()[0].PostOfficeName)
	assert.Equal(t, 3, rs.PeekNextID())
}

func TestRecordStore_Records_ReturnsCopy(t *testing.T) {
	rs, _ := newTestStore(t, office("A", "One"))

	recs := rs.Records()
	recs[0].PostOfficeName = "Mutated"

	assert.Equal(t, "One", rs.Records()[0].PostOfficeName)
}

func TestRecordStore_Get_Missing(t *testing.T) {
	rs, _ := newTestStore(t, office("A", "One"))

	_, err := rs.Get(99)
	assert.True(t, tracker.IsNotFound(err))
}

// =============================================================================
// WHOLE-COLLECTION OPERATIONS
// =============================================================================

func TestRecordStore_ReplaceAll_FreshIDs(t *testing.T) {
	// GIVEN: A store with two records (counter at 3)
	// WHEN: Replacing the collection with two imported records
	// THEN: New records get ids 3 and 4, slNo 1 and 2

	rs, _ := newTestStore(t, office("A", "One"), office("A", "Two"))

	in := []tracker.Record{office("C", "X"), office("C", "Y")}
	in[0].ID = 1
	require.NoError(t, rs.ReplaceAll(context.Background(), in))

	recs := rs.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, []int{3, 4}, tracker.IDs(recs))
	assert.Equal(t, 1, recs[0].SlNo)
	assert.Equal(t, 2, recs[1].SlNo)
	assert.Equal(t, 5, rs.PeekNextID())
}

func TestRecordStore_BackupRestore_RoundTrip(t *testing.T) {
	// GIVEN: A backup of a seeded store
	// WHEN: The store is cleared and the backup restored
	// THEN: Records and ids are back, and the counter never moved backwards

	rs, _ := newTestStore(t, office("A", "One"), office("B", "Two"))
	b := rs.Backup()
	assert.Equal(t, tracker.BackupVersion, b.Version)

	require.NoError(t, rs.Clear(context.Background()))
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, 3, rs.PeekNextID(), "clear keeps the counter")

	require.NoError(t, rs.Restore(context.Background(), b))
	recs := rs.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, []int{1, 2}, tracker.IDs(recs))
	assert.Equal(t, "Two", recs[1].PostOfficeName)
	assert.Equal(t, 3, rs.PeekNextID())
}

func TestRecordStore_Restore_InvalidIDsReassigned(t *testing.T) {
	// GIVEN: A backup with a missing id and a duplicate id
	// WHEN: Restoring
	// THEN: Kept ids survive; the others get ids above every kept id

	rs, _ := newTestStore(t)
	a, b, c := office("A", "One"), office("A", "Two"), office("A", "Three")
	a.ID, b.ID, c.ID = 7, 7, 0

	require.NoError(t, rs.Restore(context.Background(), tracker.Backup{Locations: []tracker.Record{a, b, c}}))

	assert.Equal(t, []int{7, 8, 9}, tracker.IDs(rs.Records()))
	assert.Equal(t, 10, rs.PeekNextID())
}
