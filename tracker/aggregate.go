/*
aggregate.go - Derived statistics over the record collection

PURPOSE:
  Pure functions computing the dashboard, the division rollup, the
  division-wise report, data-quality signals and per-record progress.
  Nothing here mutates or caches; callers recompute after every change.

TWO DIVISION VIEWS:
  DivisionRollup:      Dashboard cards. Counts RECORDS. pending = total - deployed,
                       where deployed means installation Completed.
  DivisionReportRows:  Report table. Sums DEVICE COUNTS. pending and
                       pendingInstall are clamped at zero.

PERCENTAGES:
  All percentages round half up to an integer, are 0 when the
  denominator is 0 and are NOT clamped (received > required gives > 100).

SEE ALSO:
  - report/: Renders these structures to PDF
  - api/handlers.go: Serves them as JSON
*/
package tracker

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// Percent returns round(num/den * 100), or 0 when den is 0.
func Percent(num, den int) int {
	if den == 0 {
		return 0
	}
	v := decimal.NewFromInt(int64(num)).Mul(hundred).Div(decimal.NewFromInt(int64(den)))
	return int(v.Add(half).Floor().IntPart())
}

// ProgressPercent is devices received over devices required for one record.
func ProgressPercent(r Record) int {
	return Percent(r.NoOfDevicesReceived, r.NumberOfPosToBeDeployed)
}

// =============================================================================
// DASHBOARD
// =============================================================================

// OverallStats is the dashboard headline.
type OverallStats struct {
	TotalOffices         int `json:"total_offices"`
	TotalDevicesReceived int `json:"total_devices_received"`
	PendingCount         int `json:"pending_count"`
	IssuesCount          int `json:"issues_count"`
}

// ComputeOverallStats summarises the collection.
func ComputeOverallStats(records []Record) OverallStats {
	s := OverallStats{TotalOffices: len(records)}
	for _, r := range records {
		s.TotalDevicesReceived += r.NoOfDevicesReceived
		if r.InstallationStatus == InstallPending {
			s.PendingCount++
		}
		if r.HasIssue() {
			s.IssuesCount++
		}
	}
	return s
}

// DivisionStats is one dashboard division card.
type DivisionStats struct {
	Division string `json:"division"`
	Total    int    `json:"total"`
	Deployed int    `json:"deployed"`
	Pending  int    `json:"pending"`
	Issues   int    `json:"issues"`
}

// DivisionRollup groups records by division in first-seen order.
func DivisionRollup(records []Record) []DivisionStats {
	var out []DivisionStats
	pos := make(map[string]int)
	for _, r := range records {
		name := divisionLabel(r.Division)
		i, ok := pos[name]
		if !ok {
			i = len(out)
			pos[name] = i
			out = append(out, DivisionStats{Division: name})
		}
		d := &out[i]
		d.Total++
		if r.IsCompleted() {
			d.Deployed++
		} else {
			d.Pending++
		}
		if r.HasIssue() {
			d.Issues++
		}
	}
	if out == nil {
		out = []DivisionStats{}
	}
	return out
}

// Divisions lists the distinct non-blank divisions in first-seen order.
func Divisions(records []Record) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, r := range records {
		if strings.TrimSpace(r.Division) == "" || seen[r.Division] {
			continue
		}
		seen[r.Division] = true
		out = append(out, r.Division)
	}
	return out
}

// RecentRecords returns the last n records, newest (last added) first.
func RecentRecords(records []Record, n int) []Record {
	if n > len(records) {
		n = len(records)
	}
	out := make([]Record, 0, n)
	for i := len(records) - 1; i >= len(records)-n; i-- {
		out = append(out, records[i])
	}
	return out
}

func divisionLabel(d string) string {
	if strings.TrimSpace(d) == "" {
		return UnassignedDivision
	}
	return d
}

// =============================================================================
// DATA QUALITY
// =============================================================================

// SerialSet holds normalized serial numbers.
type SerialSet map[string]struct{}

// Contains reports whether serial (in any casing/padding) is in the set.
func (s SerialSet) Contains(serial string) bool {
	k := NormalizeSerial(serial)
	if k == "" {
		return false
	}
	_, ok := s[k]
	return ok
}

// Sorted returns the members in ascending order.
func (s SerialSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeSerial is the comparison key for serial numbers.
func NormalizeSerial(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DuplicateSerials returns the normalized serials held by more than one record.
func DuplicateSerials(records []Record) SerialSet {
	counts := make(map[string]int)
	for _, r := range records {
		if k := NormalizeSerial(r.SerialNo); k != "" {
			counts[k]++
		}
	}
	out := SerialSet{}
	for k, n := range counts {
		if n > 1 {
			out[k] = struct{}{}
		}
	}
	return out
}

// BlankStats counts blank cells over a field set.
type BlankStats struct {
	RowsWithBlank int `json:"rows_with_blank"`
	BlankCells    int `json:"blank_cells"`
}

// BlankFieldStats counts blank cells in records over fields (nil = DetailFields).
func BlankFieldStats(records []Record, fields []Field) BlankStats {
	if fields == nil {
		fields = DetailFields
	}
	var s BlankStats
	for _, r := range records {
		blank := false
		for _, f := range fields {
			if isBlank(r, f) {
				s.BlankCells++
				blank = true
			}
		}
		if blank {
			s.RowsWithBlank++
		}
	}
	return s
}

// =============================================================================
// DIVISION-WISE REPORT
// =============================================================================

// DivisionReportRow is one line of the division-wise report.
type DivisionReportRow struct {
	Division         string `json:"division"`
	Offices          int    `json:"offices"`
	DevicesRequired  int    `json:"devices_required"`
	DevicesReceived  int    `json:"devices_received"`
	Pending          int    `json:"pending"`
	DevicesInstalled int    `json:"devices_installed"`
	PendingInstall   int    `json:"pending_install"`
	Issues           int    `json:"issues"`
	Completed        int    `json:"completed"`
	CompletionPct    int    `json:"completion_pct"`
}

// RegionSummary is the headline of the division report.
type RegionSummary struct {
	TotalOffices         int `json:"total_offices"`
	TotalDevicesRequired int `json:"total_devices_required"`
	TotalDevicesReceived int `json:"total_devices_received"`
	OverallCompletionPct int `json:"overall_completion_pct"`
}

// IssueRow is one entry in the locations-with-issues list.
type IssueRow struct {
	ID                 int    `json:"id"`
	PostOfficeName     string `json:"post_office_name"`
	Division           string `json:"division"`
	InstallationStatus string `json:"installation_status"`
	Issue              string `json:"issue"`
	ContactPersonNo    string `json:"contact_person_no"`
}

// DivisionReport bundles everything the reports view shows.
type DivisionReport struct {
	Summary RegionSummary       `json:"summary"`
	Rows    []DivisionReportRow `json:"rows"`
	Total   DivisionReportRow   `json:"total"`
	Issues  []IssueRow          `json:"issues"`
}

// DivisionReportRows computes per-division rows (sorted, with
// TrailingDivision last) and the Total row over the whole collection.
func DivisionReportRows(records []Record) ([]DivisionReportRow, DivisionReportRow) {
	groups := make(map[string][]Record)
	var names []string
	for _, r := range records {
		name := divisionLabel(r.Division)
		if _, ok := groups[name]; !ok {
			names = append(names, name)
		}
		groups[name] = append(groups[name], r)
	}
	sortDivisionNames(names)

	rows := make([]DivisionReportRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, reportRow(name, groups[name]))
	}
	return rows, reportRow("Total", records)
}

// BuildDivisionReport assembles the summary, rows, total and issue list.
func BuildDivisionReport(records []Record) DivisionReport {
	rows, total := DivisionReportRows(records)
	return DivisionReport{
		Summary: RegionSummary{
			TotalOffices:         total.Offices,
			TotalDevicesRequired: total.DevicesRequired,
			TotalDevicesReceived: total.DevicesReceived,
			OverallCompletionPct: total.CompletionPct,
		},
		Rows:   rows,
		Total:  total,
		Issues: IssueList(records),
	}
}

func reportRow(name string, rs []Record) DivisionReportRow {
	row := DivisionReportRow{Division: name, Offices: len(rs)}
	for _, r := range rs {
		row.DevicesRequired += r.NumberOfPosToBeDeployed
		row.DevicesReceived += r.NoOfDevicesReceived
		if r.IsCompleted() {
			row.DevicesInstalled++
		}
		if r.HasIssue() {
			row.Issues++
		}
	}
	row.Pending = max(0, row.DevicesRequired-row.DevicesReceived)
	row.PendingInstall = max(0, row.DevicesReceived-row.DevicesInstalled)
	row.Completed = row.DevicesInstalled
	row.CompletionPct = Percent(row.DevicesInstalled, row.DevicesRequired)
	return row
}

// IssueList returns records with issues sorted by division, then name.
func IssueList(records []Record) []IssueRow {
	out := []IssueRow{}
	for _, r := range records {
		if !r.HasIssue() {
			continue
		}
		out = append(out, IssueRow{
			ID:                 r.ID,
			PostOfficeName:     r.PostOfficeName,
			Division:           r.Division,
			InstallationStatus: r.InstallationStatus,
			Issue:              strings.TrimSpace(r.IssuesIfAny),
			ContactPersonNo:    r.ContactPersonNo,
		})
	}
	c := collate.New(language.English)
	sort.SliceStable(out, func(i, j int) bool {
		if d := c.CompareString(out[i].Division, out[j].Division); d != 0 {
			return d < 0
		}
		return c.CompareString(out[i].PostOfficeName, out[j].PostOfficeName) < 0
	})
	return out
}

// sortDivisionNames orders names alphabetically (locale-aware) with
// TrailingDivision always last.
func sortDivisionNames(names []string) {
	c := collate.New(language.English)
	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if a == TrailingDivision || b == TrailingDivision {
			return b == TrailingDivision && a != TrailingDivision
		}
		return c.CompareString(a, b) < 0
	})
}
