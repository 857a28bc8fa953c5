package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-tracker/tracker"
)

// POSTGRES_TEST_DSN points the integration tests at a scratch database.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	return dsn
}

func TestNew_OpenError(t *testing.T) {
	// GIVEN: A driver that cannot open
	// WHEN: Creating a store
	// THEN: The error is wrapped and returned

	orig := sqlOpen
	sqlOpen = func(_, _ string) (*sql.DB, error) { return nil, errors.New("no driver") }
	t.Cleanup(func() { sqlOpen = orig })

	_, err := New(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open postgres")
}

func TestPut_RejectsInvalidJSON(t *testing.T) {
	s := &Store{}
	err := s.Put(context.Background(), "k", []byte("{"))
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestStore_Integration(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	key := "pos-test-" + time.Now().Format("150405.000000")
	require.NoError(t, s.Put(ctx, key, []byte(`{"locations":[],"nextLocationId":3}`)))
	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"locations":[],"nextLocationId":3}`, string(data))

	missing, err := s.Get(ctx, key+"-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	a := tracker.Activity{ID: key, Kind: tracker.ActivityRestore, Count: 3}
	require.NoError(t, s.AppendActivity(ctx, a))
	recent, err := s.RecentActivity(ctx, 50)
	require.NoError(t, err)
	found := false
	for _, got := range recent {
		if got.ID == key {
			found = true
			assert.Equal(t, 3, got.Count)
			assert.Equal(t, "", got.Actor)
		}
	}
	assert.True(t, found)
}
