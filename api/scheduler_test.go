package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-tracker/attachments"
	"github.com/warp/pos-tracker/tracker"
)

func newTestScheduler(ts *testServer) *BackupScheduler {
	bs := NewBackupScheduler(ts.handler.Records, ts.att, ts.activity, nil)
	bs.now = func() time.Time { return fixedNow }
	return bs
}

func TestBackupScheduler_RunOnce(t *testing.T) {
	// GIVEN: A loaded collection and a blob store
	// WHEN: Running one snapshot
	// THEN: A dated backup is stored, listed by the API and logged

	ts := newTestServer(t)
	bs := newTestScheduler(ts)

	require.NoError(t, bs.RunOnce(context.Background()))

	backups, err := ts.att.Backups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Key, "POS_Backup_2025-03-15.json")

	listed := decode[[]attachments.Info](t, ts.do(t, http.MethodGet, "/api/backups", nil))
	require.Len(t, listed, 1)
	assert.Equal(t, backups[0].Key, listed[0].Key)

	entries, err := ts.activity.RecentActivity(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, tracker.ActivityBackup, entries[0].Kind)
	assert.Equal(t, "scheduler", entries[0].Actor)
	assert.Equal(t, 3, entries[0].Count)
}

func TestBackupScheduler_SameDayOverwrites(t *testing.T) {
	ts := newTestServer(t)
	bs := newTestScheduler(ts)

	require.NoError(t, bs.RunOnce(context.Background()))
	ts.do(t, http.MethodDelete, "/api/records/3", nil)
	require.NoError(t, bs.RunOnce(context.Background()))

	backups, err := ts.att.Backups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 1)

	_, rc, err := ts.att.Blobs().Get(context.Background(), backups[0].Key)
	require.NoError(t, err)
	defer rc.Close()
	var b tracker.Backup
	require.NoError(t, json.NewDecoder(rc).Decode(&b))
	assert.Len(t, b.Locations, 2)
}

func TestBackupScheduler_RetriesDirtySave(t *testing.T) {
	// GIVEN: A mutation that could not be persisted
	// WHEN: The backend recovers and the scheduler runs
	// THEN: The pending save goes through

	ts := newTestServer(t)
	bs := newTestScheduler(ts)
	ts.mem.Fail(errors.New("offline"))
	ts.do(t, http.MethodDelete, "/api/records/1", nil)
	require.True(t, ts.handler.Records.Dirty())

	ts.mem.Fail(nil)
	require.NoError(t, bs.RunOnce(context.Background()))

	assert.False(t, ts.handler.Records.Dirty())
}

func TestBackupScheduler_WithoutBlobStore(t *testing.T) {
	ts := newTestServer(t)
	bs := NewBackupScheduler(ts.handler.Records, nil, ts.activity, nil)

	require.NoError(t, bs.RunOnce(context.Background()))

	entries, err := ts.activity.RecentActivity(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBackupScheduler_StartStop(t *testing.T) {
	// GIVEN: A scheduler with a long interval
	// WHEN: Starting and stopping it
	// THEN: The immediate first run has completed by the time Stop returns

	ts := newTestServer(t)
	bs := newTestScheduler(ts)
	bs.Interval = time.Hour

	bs.Start()
	bs.Start()
	bs.Stop()
	bs.Stop()

	backups, err := ts.att.Backups(context.Background())
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestBackupScheduler_Disabled(t *testing.T) {
	ts := newTestServer(t)
	bs := newTestScheduler(ts)
	bs.Enabled = false

	bs.Start()
	bs.Stop()

	backups, err := ts.att.Backups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backups)
}
