package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/warp/pos-tracker/tracker"
)

// List views and the fields their search box covers.
const (
	viewDetails  = "details"
	viewOffices  = "offices"
	viewProgress = "progress"
)

// filterQuery is a parsed set of list query parameters.
type filterQuery struct {
	View     string
	State    tracker.FilterState
	Fallback bool
}

// parseFilter reads view, q, division, install, func, blanks, f.<field>
// and fallback from the query string.
func parseFilter(q url.Values) (filterQuery, error) {
	fq := filterQuery{View: strings.ToLower(strings.TrimSpace(q.Get("view"))), Fallback: true}
	switch fq.View {
	case "", viewDetails:
		fq.View = viewDetails
	case viewOffices:
		fq.State.QueryFields = tracker.OfficeListSearchFields
	case viewProgress:
		fq.State.QueryFields = tracker.ProgressSearchFields
	default:
		return fq, &tracker.ValidationError{Field: "view", Message: "unknown view " + fq.View}
	}

	fq.State.Query = q.Get("q")
	fq.State.Division = strings.TrimSpace(q.Get("division"))
	if v := strings.TrimSpace(q.Get("install")); v != "" {
		c, ok := tracker.CanonicalInstallationStatus(v)
		if !ok {
			return fq, &tracker.ValidationError{Field: "install", Message: "unknown status " + v}
		}
		fq.State.Installation = c
	}
	if v := strings.TrimSpace(q.Get("func")); v != "" {
		c, ok := tracker.CanonicalFunctionalityStatus(v)
		if !ok {
			return fq, &tracker.ValidationError{Field: "func", Message: "unknown status " + v}
		}
		fq.State.Functionality = c
	}
	fq.State.Blanks = tracker.ParseBlankMode(q.Get("blanks"))

	for key, vals := range q {
		name, ok := strings.CutPrefix(key, "f.")
		if !ok || len(vals) == 0 {
			continue
		}
		f, ok := tracker.LookupField(name)
		if !ok {
			return fq, &tracker.ValidationError{Field: key, Message: "unknown field"}
		}
		if fq.State.FieldFilters == nil {
			fq.State.FieldFilters = make(map[tracker.Field]string)
		}
		fq.State.FieldFilters[f] = vals[0]
	}

	if v := q.Get("fallback"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fq, &tracker.ValidationError{Field: "fallback", Message: "expected true or false"}
		}
		fq.Fallback = b
	}
	return fq, nil
}

// apply runs the filter over records.
func (fq filterQuery) apply(records []tracker.Record) ([]tracker.Record, bool) {
	if fq.Fallback {
		return fq.State.ApplyWithFallback(records)
	}
	return fq.State.Strict(records), false
}

// parseScope reads the optional from/to receipt-date range.
func parseScope(r *http.Request) (tracker.DateRange, error) {
	return tracker.ParseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
}

// actor names the user for reports and the activity log.
func actor(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-User-Name")); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("user"))
}
