package seed_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-tracker/seed"
	"github.com/warp/pos-tracker/tracker"
)

func TestSample_IsValid(t *testing.T) {
	// GIVEN: The embedded sample
	// WHEN: Parsing it
	// THEN: Every record has identity, known statuses and unique serials

	recs, err := seed.Sample()
	require.NoError(t, err)
	require.Len(t, recs, 6)

	for _, r := range recs {
		assert.NotEmpty(t, r.Division)
		assert.NotEmpty(t, r.PostOfficeName)
		_, ok := tracker.CanonicalInstallationStatus(r.InstallationStatus)
		assert.True(t, ok, r.InstallationStatus)
		_, ok = tracker.CanonicalFunctionalityStatus(r.FunctionalityStatus)
		assert.True(t, ok, r.FunctionalityStatus)
	}
	assert.Empty(t, tracker.DuplicateSerials(recs))
	assert.Contains(t, tracker.Divisions(recs), tracker.TrailingDivision)
	assert.Equal(t, 2, tracker.ComputeOverallStats(recs).IssuesCount)
}

func TestLoad_EmptyPathUsesSample(t *testing.T) {
	recs, err := seed.Load("")
	require.NoError(t, err)
	assert.Len(t, recs, 6)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"division":"X","postOfficeName":"Y","numberOfPosToBeDeployed":"3"}]`), 0o644))

	recs, err := seed.Load(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].NumberOfPosToBeDeployed)
}

func TestLoad_Errors(t *testing.T) {
	_, err := seed.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644))
	_, err = seed.Load(path)
	assert.Error(t, err)
}
