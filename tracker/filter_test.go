package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/pos-tracker/tracker"
)

func filterFixture() []tracker.Record {
	a := office("North Division", "Alpha SO")
	a.ID, a.City = 1, "Pune"
	a.InstallationStatus = tracker.InstallCompleted
	a.SerialNo, a.MID, a.TID, a.ContactEmail = "S1", "M1", "T1", "a@x.in"

	b := office("South Division", "Beta HO")
	b.ID, b.City = 2, "Chennai"
	b.FunctionalityStatus = tracker.FuncWorking

	c := office("North Division", "Gamma BO")
	c.ID, c.City = 3, "Nashik"
	c.IssuesIfAny = "Printer jam"

	return []tracker.Record{a, b, c}
}

func TestFilterState_ZeroValueMatchesAll(t *testing.T) {
	recs := filterFixture()
	assert.Equal(t, []int{1, 2, 3}, tracker.IDs(tracker.FilterState{}.Strict(recs)))
}

func TestFilterState_Query_CaseInsensitiveAcrossFields(t *testing.T) {
	// GIVEN: Records with cities Pune, Chennai, Nashik
	// WHEN: Searching "CHEN" over the office list fields
	// THEN: Only the Chennai record matches

	st := tracker.FilterState{Query: "CHEN", QueryFields: tracker.OfficeListSearchFields}
	assert.Equal(t, []int{2}, tracker.IDs(st.Strict(filterFixture())))
}

func TestFilterState_Query_SpansJoinedFields(t *testing.T) {
	// GIVEN: The office list searches name, division and city joined by " | "
	// WHEN: The query runs across the name/division boundary
	// THEN: It matches, while the same words in the wrong order do not

	st := tracker.FilterState{Query: "so | north", QueryFields: tracker.OfficeListSearchFields}
	assert.Equal(t, []int{1}, tracker.IDs(st.Strict(filterFixture())))

	st.Query = "north | alpha"
	assert.Empty(t, st.Strict(filterFixture()))
}

func TestFilterState_Query_FieldSetMatters(t *testing.T) {
	// Progress view does not search city.
	st := tracker.FilterState{Query: "pune", QueryFields: tracker.ProgressSearchFields}
	assert.Empty(t, st.Strict(filterFixture()))
}

func TestFilterState_CombinesWithAnd(t *testing.T) {
	st := tracker.FilterState{
		Division:     "North Division",
		Installation: tracker.InstallPending,
	}
	once := st.Strict(filterFixture())
	assert.Equal(t, []int{3}, tracker.IDs(once))
	assert.Equal(t, tracker.IDs(once), tracker.IDs(st.Strict(once)), "idempotent")

	st.FieldFilters = map[tracker.Field]string{tracker.FieldPostOfficeName: "alpha"}
	assert.Empty(t, st.Strict(filterFixture()))
}

func TestFilterState_Functionality(t *testing.T) {
	st := tracker.FilterState{Functionality: tracker.FuncWorking}
	assert.Equal(t, []int{2}, tracker.IDs(st.Strict(filterFixture())))
}

func TestFilterState_Blanks(t *testing.T) {
	// GIVEN: Only record 1 has every detail field filled in
	// WHEN: Filtering by blanks over a small field set
	// THEN: has/none split the collection

	recs := filterFixture()
	fields := []tracker.Field{tracker.FieldSerialNo, tracker.FieldMID}

	has := tracker.FilterState{Blanks: tracker.BlanksHas, BlankFields: fields}
	none := tracker.FilterState{Blanks: tracker.BlanksNone, BlankFields: fields}

	assert.Equal(t, []int{2, 3}, tracker.IDs(has.Strict(recs)))
	assert.Equal(t, []int{1}, tracker.IDs(none.Strict(recs)))
}

func TestFilterState_Apply_FallsBackWhenNothingMatches(t *testing.T) {
	// GIVEN: A query that matches nothing
	// WHEN: Applying with fallback
	// THEN: The whole collection is returned and the fallback is reported

	recs := filterFixture()
	st := tracker.FilterState{Query: "zzz"}

	out, fell := st.ApplyWithFallback(recs)
	assert.True(t, fell)
	assert.Equal(t, []int{1, 2, 3}, tracker.IDs(out))
	assert.Empty(t, st.Strict(recs))

	out, fell = st.ApplyWithFallback(nil)
	assert.False(t, fell)
	assert.Empty(t, out)
}

func TestParseBlankMode(t *testing.T) {
	assert.Equal(t, tracker.BlanksHas, tracker.ParseBlankMode(" HAS "))
	assert.Equal(t, tracker.BlanksNone, tracker.ParseBlankMode("none"))
	assert.Equal(t, tracker.BlanksAll, tracker.ParseBlankMode("whatever"))
}

// =============================================================================
// SELECTION
// =============================================================================

func TestSelectionSet_VisibleOperationsKeepHidden(t *testing.T) {
	// GIVEN: id 9 selected while hidden by the filter
	// WHEN: Selecting then clearing the visible ids 1 and 2
	// THEN: 9 stays selected throughout

	s := tracker.NewSelectionSet(9)

	s.SelectAllVisible([]int{1, 2})
	assert.Equal(t, []int{1, 2, 9}, s.IDs())

	s.ClearVisible([]int{1, 2})
	assert.Equal(t, []int{9}, s.IDs())
}

func TestSelectionSet_Toggle(t *testing.T) {
	var s tracker.SelectionSet

	assert.True(t, s.Toggle(4))
	assert.True(t, s.Has(4))
	assert.False(t, s.Toggle(4))
	assert.Equal(t, 0, s.Len())
}

func TestSelectionSet_CloneIndependent(t *testing.T) {
	s := tracker.NewSelectionSet(1, 2)
	c := s.Clone()
	c.Remove(1)
	s.Clear()

	assert.Equal(t, []int{2}, c.IDs())
	assert.Equal(t, 0, s.Len())
}
