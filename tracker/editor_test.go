package tracker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-tracker/tracker"
)

func TestRecordEditor_Create_Defaults(t *testing.T) {
	// GIVEN: A store with one record
	// WHEN: Creating a record with only division and name
	// THEN: The next id and slNo are assigned and defaults fill the rest

	rs, _ := newTestStore(t, office("A", "One"))
	ed := tracker.NewRecordEditor(rs, nil)

	rec, err := ed.Create(context.Background(), tracker.Changes{
		tracker.FieldDivision:       "B",
		tracker.FieldPostOfficeName: "Two",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, rec.ID)
	assert.Equal(t, 2, rec.SlNo)
	assert.Equal(t, tracker.DefaultTerminalType, rec.TypeOfPosTerminal)
	assert.Equal(t, tracker.InstallPending, rec.InstallationStatus)
	assert.Equal(t, tracker.FuncNotTested, rec.FunctionalityStatus)
	assert.Equal(t, tracker.DefaultIssues, rec.IssuesIfAny)
	assert.Equal(t, 2, rs.Len())
}

func TestRecordEditor_BlankFieldsKeepDefaults(t *testing.T) {
	// GIVEN: A form that sends issues and terminal type as blanks
	// WHEN: Creating, then updating with blanks again
	// THEN: Both fields hold their defaults instead of empty strings

	rs, _ := newTestStore(t)
	ed := tracker.NewRecordEditor(rs, nil)
	ctx := context.Background()

	rec, err := ed.Create(ctx, tracker.Changes{
		tracker.FieldDivision:          "A",
		tracker.FieldPostOfficeName:    "One",
		tracker.FieldIssuesIfAny:       "",
		tracker.FieldTypeOfPosTerminal: "  ",
	})
	require.NoError(t, err)
	assert.Equal(t, tracker.DefaultIssues, rec.IssuesIfAny)
	assert.Equal(t, tracker.DefaultTerminalType, rec.TypeOfPosTerminal)

	_, err = ed.Update(ctx, rec.ID, tracker.Changes{tracker.FieldIssuesIfAny: "Paper jam"})
	require.NoError(t, err)
	rec, err = ed.Update(ctx, rec.ID, tracker.Changes{
		tracker.FieldIssuesIfAny:       " ",
		tracker.FieldTypeOfPosTerminal: "",
	})
	require.NoError(t, err)
	assert.Equal(t, tracker.DefaultIssues, rec.IssuesIfAny)
	assert.Equal(t, tracker.DefaultTerminalType, rec.TypeOfPosTerminal)
	assert.False(t, rec.HasIssue())
}

func TestRecordEditor_Create_RequiresIdentity(t *testing.T) {
	rs, _ := newTestStore(t)
	ed := tracker.NewRecordEditor(rs, nil)

	_, err := ed.Create(context.Background(), tracker.Changes{tracker.FieldDivision: "B"})

	var verr *tracker.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "postOfficeName", verr.Field)
	assert.True(t, tracker.IsClientError(err))
	assert.Equal(t, 0, rs.Len())
}

func TestRecordEditor_Create_DuplicateSerial_Rejected(t *testing.T) {
	// GIVEN: A record holding serial "ABC123"
	// WHEN: Creating a record with " abc123 "
	// THEN: DuplicateSerialError naming the holder, nothing is added

	seed := office("A", "One")
	seed.SerialNo = "ABC123"
	rs, _ := newTestStore(t, seed)
	ed := tracker.NewRecordEditor(rs, nil)

	_, err := ed.Create(context.Background(), tracker.Changes{
		tracker.FieldDivision:       "A",
		tracker.FieldPostOfficeName: "Two",
		tracker.FieldSerialNo:       " abc123 ",
	})

	var dup *tracker.DuplicateSerialError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 1, dup.ExistingID)
	assert.ErrorIs(t, err, tracker.ErrDuplicateSerial)
	assert.Equal(t, 1, rs.Len())
}

func TestRecordEditor_Update_MergesAndCanonicalizes(t *testing.T) {
	// GIVEN: A record
	// WHEN: Updating status (lower case), date (DD/MM/YYYY) and devices
	// THEN: Only those fields change, statuses are canonical, the date is ISO

	rs, _ := newTestStore(t, office("A", "One"))
	ed := tracker.NewRecordEditor(rs, nil)

	rec, err := ed.Update(context.Background(), 1, tracker.Changes{
		tracker.FieldInstallationStatus:    "in progress",
		tracker.FieldDateOfReceiptOfDevice: "15/04/2025",
		tracker.FieldNoOfDevicesReceived:   "2",
	})

	require.NoError(t, err)
	assert.Equal(t, tracker.InstallInProgress, rec.InstallationStatus)
	assert.Equal(t, "2025-04-15", rec.DateOfReceiptOfDevice)
	assert.Equal(t, 2, rec.NoOfDevicesReceived)
	assert.Equal(t, "One", rec.PostOfficeName)
	assert.Equal(t, 1, rec.ID)
}

func TestRecordEditor_Update_OwnSerialAllowed(t *testing.T) {
	seed := office("A", "One")
	seed.SerialNo = "S-1"
	rs, _ := newTestStore(t, seed)
	ed := tracker.NewRecordEditor(rs, nil)

	_, err := ed.Update(context.Background(), 1, tracker.Changes{tracker.FieldSerialNo: "s-1"})
	assert.NoError(t, err)
}

func TestRecordEditor_Update_Invalid(t *testing.T) {
	rs, _ := newTestStore(t, office("A", "One"))
	ed := tracker.NewRecordEditor(rs, nil)
	ctx := context.Background()

	_, err := ed.Update(ctx, 1, tracker.Changes{tracker.FieldFunctionalityStatus: "Broken"})
	assert.True(t, tracker.IsClientError(err), "unknown status")

	_, err = ed.Update(ctx, 1, tracker.Changes{tracker.FieldNoOfDevicesReceived: "-3"})
	assert.True(t, tracker.IsClientError(err), "negative count")

	_, err = ed.Update(ctx, 1, tracker.Changes{tracker.FieldNoOfDevicesReceived: "many"})
	assert.True(t, tracker.IsClientError(err), "non-numeric count")

	_, err = ed.Update(ctx, 42, tracker.Changes{tracker.FieldCity: "X"})
	assert.True(t, tracker.IsNotFound(err))

	assert.Equal(t, tracker.FuncNotTested, rs.Records()[0].FunctionalityStatus)
}

func TestRecordEditor_Delete_Renumbers(t *testing.T) {
	// GIVEN: Three records
	// WHEN: Deleting the middle one
	// THEN: slNo becomes 1..2 and ids are kept

	rs, _ := newTestStore(t, office("A", "One"), office("A", "Two"), office("A", "Three"))
	ed := tracker.NewRecordEditor(rs, nil)

	require.NoError(t, ed.Delete(context.Background(), 2))

	recs := rs.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, []int{1, 3}, tracker.IDs(recs))
	assert.Equal(t, 1, recs[0].SlNo)
	assert.Equal(t, 2, recs[1].SlNo)

	err := ed.Delete(context.Background(), 2)
	assert.True(t, tracker.IsNotFound(err))
}

func TestRecordEditor_Delete_ThenCreate_NoIDReuse(t *testing.T) {
	rs, _ := newTestStore(t, office("A", "One"), office("A", "Two"))
	ed := tracker.NewRecordEditor(rs, nil)

	require.NoError(t, ed.Delete(context.Background(), 2))
	rec, err := ed.Create(context.Background(), tracker.Changes{
		tracker.FieldDivision:       "A",
		tracker.FieldPostOfficeName: "New",
	})

	require.NoError(t, err)
	assert.Equal(t, 3, rec.ID)
	assert.Equal(t, 2, rec.SlNo)
}

func TestRecordEditor_PersistenceFailure_IsWarning(t *testing.T) {
	// GIVEN: A backend that fails on write
	// WHEN: Creating a record
	// THEN: The record is returned and kept; the error is a warning

	rs, mem := newTestStore(t, office("A", "One"))
	mem.Fail(errors.New("read-only"))
	ed := tracker.NewRecordEditor(rs, nil)

	rec, err := ed.Create(context.Background(), tracker.Changes{
		tracker.FieldDivision:       "A",
		tracker.FieldPostOfficeName: "Two",
	})

	require.Error(t, err)
	assert.True(t, tracker.IsPersistenceWarning(err))
	assert.Equal(t, 2, rec.ID)
	assert.Equal(t, 2, rs.Len())
}

func TestParseChanges(t *testing.T) {
	ch, err := tracker.ParseChanges(map[string]any{
		"id":                      9,
		"slNo":                    9,
		"city":                    "Pune",
		"noOfDevicesReceived":     float64(3),
		"pincode":                 float64(411001),
		"numberOfPosToBeDeployed": "2",
	})
	require.NoError(t, err)
	assert.Equal(t, tracker.Changes{
		tracker.FieldCity:                    "Pune",
		tracker.FieldNoOfDevicesReceived:     "3",
		tracker.FieldPincode:                 "411001",
		tracker.FieldNumberOfPosToBeDeployed: "2",
	}, ch)

	_, err = tracker.ParseChanges(map[string]any{"colour": "red"})
	assert.True(t, tracker.IsClientError(err))
}
