/*
Package tabular reads and writes the tracker's spreadsheet format.

PURPOSE:
  Offices are exchanged with field teams as .xlsx workbooks in a fixed
  positional column layout. This package owns that layout: export of the
  live (or date-scoped) collection, the blank template, and parsing of
  uploaded workbooks back into records.

LAYOUTS:
  Current (24 columns): tracker.Columns order, MID and TID at 19/20.
  Legacy  (22 columns): same without MID/TID; statuses sit at 19..21.
  The layout of an upload is detected from its header row.

IMPORT RULES:
  - First sheet only; row 1 is the header and is discarded.
  - Fewer than 2 rows -> *tracker.ImportFormatError.
  - Rows without Division or POST OFFICE NAME are skipped.
  - Blank Post Office ID -> AUTO-<unix millis>-<row index>.
  - Blank counts: POS required -> 1, devices received -> 0.
  - Dates may be text or Excel date serials; both are normalized.

SEE ALSO:
  - tracker/fields.go: Columns, the canonical order
  - api/transfer.go: two-phase upload/confirm flow
*/
package tabular

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/warp/pos-tracker/tracker"
	"github.com/xuri/excelize/v2"
)

// Sheet and file names.
const (
	ExportSheet      = "POS Data"
	TemplateSheet    = "POS Template"
	TemplateFilename = "POS_Deployment_Template.xlsx"
	ContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Layout identifies the column layout of an uploaded workbook.
type Layout string

const (
	LayoutCurrent Layout = "current"
	LayoutLegacy  Layout = "legacy"
)

// legacyFields is the column order before MID and TID were added.
var legacyFields = func() []tracker.Field {
	out := make([]tracker.Field, 0, len(tracker.Columns)-2)
	for _, c := range tracker.Columns {
		if c.Field == tracker.FieldMID || c.Field == tracker.FieldTID {
			continue
		}
		out = append(out, c.Field)
	}
	return out
}()

// ExportFilename returns the download name for an export made at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("POS_Data_Export_%s.xlsx", t.Format(tracker.ISODateLayout))
}

// =============================================================================
// EXPORT
// =============================================================================

// Export writes records to a single-sheet workbook in the current layout.
func Export(records []tracker.Record) (*bytes.Buffer, error) {
	f, err := newSheet(ExportSheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i, r := range records {
		for col, c := range tracker.Columns {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(ExportSheet, cell, exportValue(r, c)); err != nil {
				return nil, fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	return f.WriteToBuffer()
}

// Template writes the blank import template: header plus one sample row.
func Template() (*bytes.Buffer, error) {
	f, err := newSheet(TemplateSheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := f.SetSheetRow(TemplateSheet, "A2", &templateSample); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

var templateSample = []any{
	1, "Sample Division", "Sample Post Office", "SAMPLE001", "Head Post Office",
	"Contact Person", "9876543210", "9876543211", "contact@postoffice.gov.in",
	"Sample Address", "Sample Location", "Sample City", "Sample State", "123456",
	5, tracker.DefaultTerminalType, "", 0, "", "", "",
	tracker.InstallPending, tracker.FuncNotTested, tracker.DefaultIssues,
}

// newSheet creates a workbook whose only sheet is name, with a styled
// header row in the current layout.
func newSheet(name string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	for col, c := range tracker.Columns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(name, cell, c.Label)
		f.SetCellStyle(name, cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(col + 1)
		f.SetColWidth(name, colName, colName, 20)
	}
	f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return f, nil
}

func exportValue(r tracker.Record, c tracker.Column) any {
	v := r.Get(c.Field)
	if c.Numeric {
		n, _ := strconv.Atoi(v)
		return n
	}
	return v
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportResult is a parsed upload, not yet applied to the collection.
type ImportResult struct {
	Records []tracker.Record
	Skipped int
	Layout  Layout
}

// Import parses the first sheet of an uploaded workbook. now stamps
// generated Post Office IDs. Records carry no ids; the store assigns them
// on confirmation.
func Import(r io.Reader, now time.Time) (ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{}, &tracker.ImportFormatError{Reason: "not a readable workbook: " + err.Error()}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ImportResult{}, &tracker.ImportFormatError{Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return ImportResult{}, &tracker.ImportFormatError{Reason: err.Error()}
	}
	return ParseRows(rows, now)
}

// ParseRows maps positional rows (header first) to records.
func ParseRows(rows [][]string, now time.Time) (ImportResult, error) {
	if len(rows) < 2 {
		return ImportResult{}, &tracker.ImportFormatError{Reason: "expected a header row and at least one data row"}
	}

	res := ImportResult{Records: []tracker.Record{}, Layout: DetectLayout(rows[0])}
	fields := tracker.DetailFields
	if res.Layout == LayoutLegacy {
		fields = legacyFields
	}

	stamp := now.UnixMilli()
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}
		rec, ok := parseRow(row, fields)
		if !ok {
			res.Skipped++
			continue
		}
		if rec.PostOfficeID == "" {
			rec.PostOfficeID = fmt.Sprintf("AUTO-%d-%d", stamp, i)
		}
		rec.SlNo = len(res.Records) + 1
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// DetectLayout inspects a header row. Anything without MID at position 19
// is read as the legacy layout.
func DetectLayout(header []string) Layout {
	if len(header) > 19 && strings.EqualFold(strings.TrimSpace(header[19]), "MID") {
		return LayoutCurrent
	}
	return LayoutLegacy
}

func parseRow(row []string, fields []tracker.Field) (tracker.Record, bool) {
	cell := func(f tracker.Field) string {
		for i, ff := range fields {
			if ff == f {
				if i < len(row) {
					return strings.TrimSpace(row[i])
				}
				return ""
			}
		}
		return ""
	}

	division := cell(tracker.FieldDivision)
	name := cell(tracker.FieldPostOfficeName)
	if division == "" || name == "" {
		return tracker.Record{}, false
	}

	rec := tracker.Record{
		Division:            division,
		PostOfficeName:      name,
		PostOfficeID:        cell(tracker.FieldPostOfficeID),
		OfficeType:          orDefault(cell(tracker.FieldOfficeType), tracker.DefaultOfficeType),
		ContactPersonName:   orDefault(cell(tracker.FieldContactPersonName), tracker.DefaultContactName),
		ContactPersonNo:     cell(tracker.FieldContactPersonNo),
		AltContactNo:        cell(tracker.FieldAltContactNo),
		ContactEmail:        cell(tracker.FieldContactEmail),
		LocationAddress:     cell(tracker.FieldLocationAddress),
		Location:            cell(tracker.FieldLocation),
		City:                cell(tracker.FieldCity),
		State:               cell(tracker.FieldState),
		Pincode:             cell(tracker.FieldPincode),
		TypeOfPosTerminal:   orDefault(cell(tracker.FieldTypeOfPosTerminal), tracker.DefaultTerminalType),
		SerialNo:            cell(tracker.FieldSerialNo),
		MID:                 cell(tracker.FieldMID),
		TID:                 cell(tracker.FieldTID),
		IssuesIfAny:         orDefault(cell(tracker.FieldIssuesIfAny), tracker.DefaultIssues),
		InstallationStatus:  tracker.InstallPending,
		FunctionalityStatus: tracker.FuncNotTested,
	}

	rec.NumberOfPosToBeDeployed = 1
	if n, ok := tracker.ParseCount(cell(tracker.FieldNumberOfPosToBeDeployed)); ok {
		rec.NumberOfPosToBeDeployed = n
	}
	if n, ok := tracker.ParseCount(cell(tracker.FieldNoOfDevicesReceived)); ok {
		rec.NoOfDevicesReceived = n
	}
	if v, ok := tracker.CanonicalInstallationStatus(cell(tracker.FieldInstallationStatus)); ok {
		rec.InstallationStatus = v
	}
	if v, ok := tracker.CanonicalFunctionalityStatus(cell(tracker.FieldFunctionalityStatus)); ok {
		rec.FunctionalityStatus = v
	}
	rec.DateOfReceiptOfDevice = importDate(cell(tracker.FieldDateOfReceiptOfDevice))
	return rec, true
}

// importDate accepts the text formats tracker understands plus raw Excel
// date serials.
func importDate(v string) string {
	if v == "" {
		return ""
	}
	if _, ok := tracker.ParseReceiptDate(v); ok {
		return tracker.NormalizeReceiptDate(v)
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 && serial < 2958466 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(tracker.ISODateLayout)
		}
	}
	return v
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
