package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-tracker/tracker"
)

func rec(id int, division string, required, received int, install, issues string) tracker.Record {
	r := office(division, "PO "+division)
	r.ID = id
	r.NumberOfPosToBeDeployed = required
	r.NoOfDevicesReceived = received
	r.InstallationStatus = install
	r.IssuesIfAny = issues
	return r
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, tracker.Percent(3, 0))
	assert.Equal(t, 50, tracker.Percent(1, 2))
	assert.Equal(t, 33, tracker.Percent(1, 3))
	assert.Equal(t, 67, tracker.Percent(2, 3))
	assert.Equal(t, 200, tracker.Percent(4, 2), "not clamped")
	assert.Equal(t, 3, tracker.Percent(1, 40), "2.5 rounds half up")
}

func TestComputeOverallStats(t *testing.T) {
	// GIVEN: Three records, one pending, two with "real" issues
	// WHEN: Computing the headline
	// THEN: "none" in any casing does not count as an issue

	recs := []tracker.Record{
		rec(1, "A", 2, 2, tracker.InstallCompleted, "None"),
		rec(2, "A", 1, 1, tracker.InstallPending, "Battery"),
		rec(3, "B", 1, 0, tracker.InstallInProgress, " NONE "),
		rec(4, "B", 1, 0, tracker.InstallInProgress, "Screen"),
	}

	s := tracker.ComputeOverallStats(recs)

	assert.Equal(t, 4, s.TotalOffices)
	assert.Equal(t, 3, s.TotalDevicesReceived)
	assert.Equal(t, 1, s.PendingCount)
	assert.Equal(t, 2, s.IssuesCount)
}

func TestDivisionRollup_FirstSeenOrder(t *testing.T) {
	recs := []tracker.Record{
		rec(1, "B", 1, 1, tracker.InstallCompleted, "None"),
		rec(2, "A", 1, 0, tracker.InstallPending, "x"),
		rec(3, "B", 1, 0, tracker.InstallInProgress, "None"),
		rec(4, "", 1, 0, tracker.InstallPending, "None"),
	}

	out := tracker.DivisionRollup(recs)

	require.Len(t, out, 3)
	assert.Equal(t, tracker.DivisionStats{Division: "B", Total: 2, Deployed: 1, Pending: 1}, out[0])
	assert.Equal(t, tracker.DivisionStats{Division: "A", Total: 1, Pending: 1, Issues: 1}, out[1])
	assert.Equal(t, tracker.UnassignedDivision, out[2].Division)
	assert.Empty(t, tracker.DivisionRollup(nil))
}

func TestDivisions_SkipsBlank(t *testing.T) {
	recs := []tracker.Record{rec(1, "B", 1, 0, "", ""), rec(2, " ", 1, 0, "", ""), rec(3, "A", 1, 0, "", ""), rec(4, "B", 1, 0, "", "")}
	assert.Equal(t, []string{"B", "A"}, tracker.Divisions(recs))
}

func TestRecentRecords_NewestFirst(t *testing.T) {
	recs := []tracker.Record{rec(1, "A", 1, 0, "", ""), rec(2, "A", 1, 0, "", ""), rec(3, "A", 1, 0, "", "")}

	assert.Equal(t, []int{3, 2}, tracker.IDs(tracker.RecentRecords(recs, 2)))
	assert.Equal(t, []int{3, 2, 1}, tracker.IDs(tracker.RecentRecords(recs, 5)))
}

func TestDuplicateSerials(t *testing.T) {
	a, b, c, d := rec(1, "A", 1, 0, "", ""), rec(2, "A", 1, 0, "", ""), rec(3, "A", 1, 0, "", ""), rec(4, "A", 1, 0, "", "")
	a.SerialNo, b.SerialNo, c.SerialNo, d.SerialNo = "X1", " x1", "Y2", ""

	dups := tracker.DuplicateSerials([]tracker.Record{a, b, c, d})

	assert.Equal(t, []string{"x1"}, dups.Sorted())
	assert.True(t, dups.Contains("X1 "))
	assert.False(t, dups.Contains("Y2"))
	assert.False(t, dups.Contains(""))
}

func TestBlankFieldStats(t *testing.T) {
	a, b := rec(1, "A", 1, 0, "", ""), rec(2, "A", 1, 0, "", "")
	a.SerialNo, a.MID = "S", ""
	b.SerialNo, b.MID = "S", "M"

	s := tracker.BlankFieldStats([]tracker.Record{a, b}, []tracker.Field{tracker.FieldSerialNo, tracker.FieldMID})

	assert.Equal(t, tracker.BlankStats{RowsWithBlank: 1, BlankCells: 1}, s)
}

// =============================================================================
// DIVISION-WISE REPORT
// =============================================================================

func TestDivisionReportRows_SortingAndTrailingDivision(t *testing.T) {
	// GIVEN: Divisions in arbitrary order including RMS HB Division
	// WHEN: Building report rows
	// THEN: Alphabetical order with RMS HB Division last

	recs := []tracker.Record{
		rec(1, tracker.TrailingDivision, 1, 0, tracker.InstallPending, "None"),
		rec(2, "Zeta Division", 1, 0, tracker.InstallPending, "None"),
		rec(3, "alpha Division", 1, 0, tracker.InstallPending, "None"),
		rec(4, "Beta Division", 1, 0, tracker.InstallPending, "None"),
	}

	rows, total := tracker.DivisionReportRows(recs)

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Division
	}
	assert.Equal(t, []string{"alpha Division", "Beta Division", "Zeta Division", tracker.TrailingDivision}, names)
	assert.Equal(t, "Total", total.Division)
	assert.Equal(t, 4, total.Offices)
}

func TestDivisionReportRows_Counts(t *testing.T) {
	// GIVEN: Division A requires 5, received 6 (over-delivery), one installed
	// WHEN: Computing its row
	// THEN: pending clamps at 0, pendingInstall = received - installed,
	//       completion = installed / required

	recs := []tracker.Record{
		rec(1, "A", 3, 4, tracker.InstallCompleted, "None"),
		rec(2, "A", 2, 2, tracker.InstallInProgress, "Antenna"),
	}

	rows, total := tracker.DivisionReportRows(recs)

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 2, r.Offices)
	assert.Equal(t, 5, r.DevicesRequired)
	assert.Equal(t, 6, r.DevicesReceived)
	assert.Equal(t, 0, r.Pending)
	assert.Equal(t, 1, r.DevicesInstalled)
	assert.Equal(t, 5, r.PendingInstall)
	assert.Equal(t, 1, r.Issues)
	assert.Equal(t, 20, r.CompletionPct)
	assert.Equal(t, r.DevicesRequired, total.DevicesRequired)
}

func TestBuildDivisionReport_IssueList(t *testing.T) {
	a := rec(1, "B", 1, 0, tracker.InstallPending, "Network")
	a.PostOfficeName = "Zed"
	b := rec(2, "A", 1, 0, tracker.InstallPending, "  Paper  ")
	c := rec(3, "B", 1, 0, tracker.InstallPending, "Screen")
	c.PostOfficeName = "Ace"
	d := rec(4, "A", 1, 0, tracker.InstallPending, "none")

	rep := tracker.BuildDivisionReport([]tracker.Record{a, b, c, d})

	require.Len(t, rep.Issues, 3)
	assert.Equal(t, 2, rep.Issues[0].ID)
	assert.Equal(t, "Paper", rep.Issues[0].Issue)
	assert.Equal(t, 3, rep.Issues[1].ID)
	assert.Equal(t, 1, rep.Issues[2].ID)
	assert.Equal(t, 4, rep.Summary.TotalOffices)
	assert.Equal(t, 0, rep.Summary.OverallCompletionPct)
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, tracker.ProgressPercent(rec(1, "A", 0, 3, "", "")))
	assert.Equal(t, 150, tracker.ProgressPercent(rec(1, "A", 2, 3, "", "")))
}

func TestTotalsReconcileWithDivisions(t *testing.T) {
	// GIVEN: Collections spread over several divisions, one over-delivered
	// WHEN: Computing the rollup and the report rows
	// THEN: Rollup totals add up to the collection size, and the Total row
	//       equals the sum of the division rows for every summable column.
	//       Pending and pendingInstall are clamped on the totals themselves,
	//       so they are checked against the clamped total, not the row sum.

	cases := []struct {
		name    string
		records []tracker.Record
	}{
		{"empty", nil},
		{"single division", []tracker.Record{
			rec(1, "A", 2, 1, tracker.InstallPending, "None"),
			rec(2, "A", 1, 1, tracker.InstallCompleted, "Battery"),
		}},
		{"mixed with over-delivery", []tracker.Record{
			rec(1, "A", 3, 4, tracker.InstallCompleted, "None"),
			rec(2, "A", 2, 2, tracker.InstallInProgress, "Antenna"),
			rec(3, "B", 4, 1, tracker.InstallPending, "Screen"),
			rec(4, tracker.TrailingDivision, 1, 1, tracker.InstallCompleted, "None"),
			rec(5, "", 2, 0, tracker.InstallPending, "None"),
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rollupTotal := 0
			for _, d := range tracker.DivisionRollup(c.records) {
				assert.Equal(t, d.Total, d.Deployed+d.Pending, d.Division)
				rollupTotal += d.Total
			}
			assert.Equal(t, len(c.records), rollupTotal)

			rows, total := tracker.DivisionReportRows(c.records)
			var sum tracker.DivisionReportRow
			for _, r := range rows {
				sum.Offices += r.Offices
				sum.DevicesRequired += r.DevicesRequired
				sum.DevicesReceived += r.DevicesReceived
				sum.DevicesInstalled += r.DevicesInstalled
				sum.Issues += r.Issues
				sum.Completed += r.Completed
			}
			assert.Equal(t, len(c.records), total.Offices)
			assert.Equal(t, sum.Offices, total.Offices)
			assert.Equal(t, sum.DevicesRequired, total.DevicesRequired)
			assert.Equal(t, sum.DevicesReceived, total.DevicesReceived)
			assert.Equal(t, sum.DevicesInstalled, total.DevicesInstalled)
			assert.Equal(t, sum.Issues, total.Issues)
			assert.Equal(t, sum.Completed, total.Completed)

			assert.Equal(t, max(0, total.DevicesRequired-total.DevicesReceived), total.Pending)
			assert.Equal(t, max(0, total.DevicesReceived-total.DevicesInstalled), total.PendingInstall)
		})
	}
}

func TestDivisionReportRows_PendingClampedOnTotal(t *testing.T) {
	// Division A over-delivers by one, B is short by three: the Total row
	// shows 2 pending, not the 3 that the clamped rows add up to.
	recs := []tracker.Record{
		rec(1, "A", 1, 2, tracker.InstallPending, "None"),
		rec(2, "B", 4, 1, tracker.InstallPending, "None"),
	}

	rows, total := tracker.DivisionReportRows(recs)

	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Pending)
	assert.Equal(t, 3, rows[1].Pending)
	assert.Equal(t, 2, total.Pending)
}
