package tracker

import (
	"strings"
	"time"
)

// =============================================================================
// RECEIPT DATES - stored as ISO text, shown as DD/MM/YYYY
// =============================================================================

const (
	ISODateLayout     = "2006-01-02"
	DisplayDateLayout = "02/01/2006"
)

// Accepted input layouts, most specific first. Day-first layouts win over
// month-first because the tracker is used with Indian date conventions.
var receiptDateLayouts = []string{
	ISODateLayout,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
}

// ParseReceiptDate parses the accepted date forms. The result is a UTC
// midnight. Blank or unrecognised text yields false.
func ParseReceiptDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range receiptDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// NormalizeReceiptDate returns the stored form: ISO when parseable,
// otherwise the trimmed text unchanged.
func NormalizeReceiptDate(s string) string {
	if t, ok := ParseReceiptDate(s); ok {
		return t.Format(ISODateLayout)
	}
	return strings.TrimSpace(s)
}

// DisplayReceiptDate returns DD/MM/YYYY for parseable values and the raw
// text otherwise.
func DisplayReceiptDate(s string) string {
	if t, ok := ParseReceiptDate(s); ok {
		return t.Format(DisplayDateLayout)
	}
	return s
}

// FormatDisplayDate renders t as DD/MM/YYYY.
func FormatDisplayDate(t time.Time) string {
	return t.Format(DisplayDateLayout)
}

// DateRange is an inclusive day range. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether day t lies inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// ParseDateRange builds a range from two optional date strings.
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange
	if strings.TrimSpace(from) != "" {
		t, ok := ParseReceiptDate(from)
		if !ok {
			return r, &ValidationError{Field: "from", Message: "unrecognised date " + from}
		}
		r.From = t
	}
	if strings.TrimSpace(to) != "" {
		t, ok := ParseReceiptDate(to)
		if !ok {
			return r, &ValidationError{Field: "to", Message: "unrecognised date " + to}
		}
		r.To = t
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, &ValidationError{Field: "to", Message: "end date before start date"}
	}
	return r, nil
}

// FilterByReceiptDate keeps records whose receipt date falls in the range.
// With a zero range every record is kept; otherwise records without a
// parseable date are dropped.
func FilterByReceiptDate(records []Record, r DateRange) []Record {
	if r.IsZero() {
		return cloneRecords(records)
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if t, ok := rec.ReceiptDate(); ok && r.Contains(t) {
			out = append(out, rec)
		}
	}
	return out
}
