/*
Package report renders the tracker's printable PDF documents.

DOCUMENTS:
  Dashboard:  Headline counts plus the per-division cards as a table.
  Progress:   One row per office with devices received against required.
  Divisions:  The division-wise report: region summary, division table
              with Total row, and the locations-with-issues list.

Every document opens with the same header block: the title at 20pt,
"Generated on: DD/MM/YYYY" and "Generated by: <user>". When the caller
scoped the data to a receipt-date range, the range is printed as well.

Output is returned as bytes; the HTTP layer sets the download name from
Filename.
*/
package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/warp/pos-tracker/tracker"
)

// Document titles.
const (
	DashboardTitle = "POS Deployment Dashboard Summary"
	ProgressTitle  = "POS Deployment Progress Report"
	DivisionsTitle = "NKR POS Deployment Report"
)

// DefaultGeneratedBy is printed when no user name is known.
const DefaultGeneratedBy = "User"

// Orientation values accepted by Options.
const (
	Portrait  = "P"
	Landscape = "L"
)

// Options controls the shared header and page setup.
type Options struct {
	Title       string
	Orientation string
	GeneratedBy string
	GeneratedAt time.Time
	Scope       tracker.DateRange
}

func (o Options) withDefaults(title string) Options {
	if o.Title == "" {
		o.Title = title
	}
	if o.Orientation != Landscape {
		o.Orientation = Portrait
	}
	if o.GeneratedBy == "" {
		o.GeneratedBy = DefaultGeneratedBy
	}
	if o.GeneratedAt.IsZero() {
		o.GeneratedAt = time.Now()
	}
	return o
}

var whitespace = regexp.MustCompile(`\s+`)

// Filename is the download name: title with whitespace runs replaced by
// '-', then the ISO date.
func Filename(title string, t time.Time) string {
	return fmt.Sprintf("%s-%s.pdf", whitespace.ReplaceAllString(title, "-"), t.Format(tracker.ISODateLayout))
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// DashboardPDF renders the dashboard summary.
func DashboardPDF(records []tracker.Record, opt Options) ([]byte, error) {
	opt = opt.withDefaults(DashboardTitle)
	d := newDoc(opt)

	stats := tracker.ComputeOverallStats(records)
	d.section("Overview")
	d.keyValues([][2]string{
		{"Total Offices", strconv.Itoa(stats.TotalOffices)},
		{"Devices Received", strconv.Itoa(stats.TotalDevicesReceived)},
		{"Pending Installation", strconv.Itoa(stats.PendingCount)},
		{"Offices with Issues", strconv.Itoa(stats.IssuesCount)},
	})

	d.section("Division Summary")
	rows := [][]string{}
	for _, s := range tracker.DivisionRollup(records) {
		rows = append(rows, []string{s.Division, strconv.Itoa(s.Total), strconv.Itoa(s.Deployed),
			strconv.Itoa(s.Pending), strconv.Itoa(s.Issues)})
	}
	d.table([]column{
		{"Division", 3, "L"}, {"Total", 1, "R"}, {"Deployed", 1, "R"}, {"Pending", 1, "R"}, {"Issues", 1, "R"},
	}, rows, nil)

	return d.output()
}

// ProgressPDF renders per-office deployment progress.
func ProgressPDF(records []tracker.Record, opt Options) ([]byte, error) {
	opt = opt.withDefaults(ProgressTitle)
	d := newDoc(opt)

	d.section("Deployment Progress")
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.SlNo), r.PostOfficeName, r.Division,
			strconv.Itoa(r.NumberOfPosToBeDeployed), strconv.Itoa(r.NoOfDevicesReceived),
			fmt.Sprintf("%d%%", tracker.ProgressPercent(r)), r.InstallationStatus,
		})
	}
	d.table([]column{
		{"Sl.No.", 0.7, "R"}, {"Post Office", 3, "L"}, {"Division", 2.2, "L"},
		{"Required", 1, "R"}, {"Received", 1, "R"}, {"Progress", 1, "R"}, {"Status", 1.6, "L"},
	}, rows, nil)

	return d.output()
}

// DivisionReportPDF renders the division-wise report.
func DivisionReportPDF(rep tracker.DivisionReport, opt Options) ([]byte, error) {
	opt = opt.withDefaults(DivisionsTitle)
	d := newDoc(opt)

	d.section("Region Summary")
	d.keyValues([][2]string{
		{"Total Offices", strconv.Itoa(rep.Summary.TotalOffices)},
		{"Devices Required", strconv.Itoa(rep.Summary.TotalDevicesRequired)},
		{"Devices Received", strconv.Itoa(rep.Summary.TotalDevicesReceived)},
		{"Overall Completion", fmt.Sprintf("%d%%", rep.Summary.OverallCompletionPct)},
	})

	d.section("Division-wise Status")
	cols := []column{
		{"Division", 2.6, "L"}, {"Offices", 1, "R"}, {"Required", 1, "R"}, {"Received", 1, "R"},
		{"Pending", 1, "R"}, {"Installed", 1, "R"}, {"Pend. Install", 1.2, "R"},
		{"Issues", 0.9, "R"}, {"Completion", 1.1, "R"},
	}
	rows := make([][]string, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		rows = append(rows, divisionCells(r))
	}
	total := divisionCells(rep.Total)
	d.table(cols, rows, total)

	d.section("Locations with Issues")
	if len(rep.Issues) == 0 {
		d.paragraph("No issues reported.")
		return d.output()
	}
	issues := make([][]string, 0, len(rep.Issues))
	for _, is := range rep.Issues {
		issues = append(issues, []string{is.PostOfficeName, is.Division, is.InstallationStatus, is.Issue, is.ContactPersonNo})
	}
	d.table([]column{
		{"Post Office", 2.2, "L"}, {"Division", 2, "L"}, {"Status", 1.4, "L"}, {"Issue", 3, "L"}, {"Contact", 1.4, "L"},
	}, issues, nil)

	return d.output()
}

func divisionCells(r tracker.DivisionReportRow) []string {
	return []string{
		r.Division, strconv.Itoa(r.Offices), strconv.Itoa(r.DevicesRequired), strconv.Itoa(r.DevicesReceived),
		strconv.Itoa(r.Pending), strconv.Itoa(r.DevicesInstalled), strconv.Itoa(r.PendingInstall),
		strconv.Itoa(r.Issues), fmt.Sprintf("%d%%", r.CompletionPct),
	}
}

// =============================================================================
// LAYOUT HELPERS
// =============================================================================

const (
	margin    = 20.0
	rowHeight = 7.0
)

type column struct {
	label  string
	weight float64
	align  string
}

type doc struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newDoc(opt Options) *doc {
	pdf := gofpdf.New(opt.Orientation, "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(opt.Title, true)
	pdf.SetAuthor(opt.GeneratedBy, true)
	pdf.SetCreationDate(opt.GeneratedAt)
	pdf.AliasNbPages("")
	d := &doc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, d.tr(opt.Title), "", 1, "L", false, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "Generated on: "+tracker.FormatDisplayDate(opt.GeneratedAt), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, d.tr("Generated by: "+opt.GeneratedBy), "", 1, "L", false, 0, "")
	if !opt.Scope.IsZero() {
		pdf.CellFormat(0, 8, "Receipt dates: "+scopeText(opt.Scope), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
	return d
}

func scopeText(r tracker.DateRange) string {
	from, to := "start", "today"
	if !r.From.IsZero() {
		from = tracker.FormatDisplayDate(r.From)
	}
	if !r.To.IsZero() {
		to = tracker.FormatDisplayDate(r.To)
	}
	return from + " to " + to
}

func (d *doc) section(title string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Arial", "B", 14)
	d.pdf.CellFormat(0, 9, d.tr(title), "", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

func (d *doc) paragraph(text string) {
	d.pdf.SetFont("Arial", "", 11)
	d.pdf.MultiCell(0, 6, d.tr(text), "", "L", false)
}

func (d *doc) keyValues(pairs [][2]string) {
	for _, kv := range pairs {
		d.pdf.SetFont("Arial", "B", 11)
		d.pdf.CellFormat(60, rowHeight, d.tr(kv[0]), "", 0, "L", false, 0, "")
		d.pdf.SetFont("Arial", "", 11)
		d.pdf.CellFormat(0, rowHeight, d.tr(kv[1]), "", 1, "L", false, 0, "")
	}
}

// table draws a bordered table that spans the printable width. The header
// row repeats on every page; footer (if any) is drawn in bold.
func (d *doc) table(cols []column, rows [][]string, footer []string) {
	pageW, pageH := d.pdf.GetPageSize()
	avail := pageW - 2*margin
	var sum float64
	for _, c := range cols {
		sum += c.weight
	}
	widths := make([]float64, len(cols))
	for i, c := range cols {
		widths[i] = avail * c.weight / sum
	}

	header := func() {
		d.pdf.SetFont("Arial", "B", 9)
		d.pdf.SetFillColor(68, 114, 196)
		d.pdf.SetTextColor(255, 255, 255)
		for i, c := range cols {
			d.pdf.CellFormat(widths[i], rowHeight, d.tr(c.label), "1", 0, "C", true, 0, "")
		}
		d.pdf.Ln(-1)
		d.pdf.SetTextColor(0, 0, 0)
	}
	line := func(cells []string, style string, fill bool) {
		if d.pdf.GetY()+rowHeight > pageH-margin {
			d.pdf.AddPage()
			header()
		}
		d.pdf.SetFont("Arial", style, 9)
		d.pdf.SetFillColor(242, 242, 242)
		for i := range cols {
			text := ""
			if i < len(cells) {
				text = fit(d.pdf, d.tr(cells[i]), widths[i]-2)
			}
			d.pdf.CellFormat(widths[i], rowHeight, text, "1", 0, cols[i].align, fill, 0, "")
		}
		d.pdf.Ln(-1)
	}

	header()
	for i, r := range rows {
		line(r, "", i%2 == 1)
	}
	if footer != nil {
		line(footer, "B", false)
	}
	d.pdf.Ln(3)
}

// fit truncates s with "..." until it fits in w.
func fit(pdf *gofpdf.Fpdf, s string, w float64) string {
	if pdf.GetStringWidth(s) <= w {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > w {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func (d *doc) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
