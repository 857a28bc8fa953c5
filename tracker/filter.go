package tracker

import "strings"

// =============================================================================
// FILTER ENGINE
// =============================================================================

// BlankMode is the tri-state blanks filter.
type BlankMode string

const (
	BlanksAll  BlankMode = "all"
	BlanksHas  BlankMode = "has"
	BlanksNone BlankMode = "none"
)

// ParseBlankMode maps user input onto a BlankMode; anything unknown is BlanksAll.
func ParseBlankMode(s string) BlankMode {
	switch BlankMode(strings.ToLower(strings.TrimSpace(s))) {
	case BlanksHas:
		return BlanksHas
	case BlanksNone:
		return BlanksNone
	}
	return BlanksAll
}

const searchSeparator = " | "

// FilterState is the full set of active filters for one view. The zero
// value matches every record. All criteria combine with AND.
type FilterState struct {
	// Query is a case-insensitive substring of QueryFields joined with
	// " | ". Nil QueryFields means DetailFields.
	Query       string
	QueryFields []Field

	// FieldFilters are per-column case-insensitive substrings.
	FieldFilters map[Field]string

	// Exact-match dropdowns; empty means no constraint.
	Division      string
	Installation  string
	Functionality string

	// Blanks selects rows by whether any of BlankFields is blank.
	// Nil BlankFields means DetailFields.
	Blanks      BlankMode
	BlankFields []Field
}

// Matches reports whether r satisfies every active criterion.
func (st FilterState) Matches(r Record) bool {
	if q := strings.ToLower(strings.TrimSpace(st.Query)); q != "" {
		fields := st.QueryFields
		if fields == nil {
			fields = DetailFields
		}
		if !strings.Contains(strings.ToLower(searchText(r, fields)), q) {
			return false
		}
	}

	for f, v := range st.FieldFilters {
		if v == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(r.Get(f)), strings.ToLower(v)) {
			return false
		}
	}

	if st.Division != "" && r.Division != st.Division {
		return false
	}
	if st.Installation != "" && r.InstallationStatus != st.Installation {
		return false
	}
	if st.Functionality != "" && r.FunctionalityStatus != st.Functionality {
		return false
	}

	switch st.Blanks {
	case BlanksHas:
		return st.hasBlank(r)
	case BlanksNone:
		return !st.hasBlank(r)
	}
	return true
}

// searchText joins the searched fields so a query may span two of them.
func searchText(r Record, fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = r.Get(f)
	}
	return strings.Join(parts, searchSeparator)
}

func (st FilterState) hasBlank(r Record) bool {
	fields := st.BlankFields
	if fields == nil {
		fields = DetailFields
	}
	for _, f := range fields {
		if isBlank(r, f) {
			return true
		}
	}
	return false
}

func isBlank(r Record, f Field) bool {
	return strings.TrimSpace(r.Get(f)) == ""
}

// Strict returns the matching records in collection order, possibly none.
func (st FilterState) Strict(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if st.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Apply returns the matching records, falling back to the full collection
// when nothing matches a non-empty collection.
func (st FilterState) Apply(records []Record) []Record {
	out, _ := st.ApplyWithFallback(records)
	return out
}

// ApplyWithFallback is Apply that also reports whether the fallback fired.
func (st FilterState) ApplyWithFallback(records []Record) ([]Record, bool) {
	out := st.Strict(records)
	if len(out) == 0 && len(records) > 0 {
		return cloneRecords(records), true
	}
	return out, false
}

// IDs lists record ids in order; used as the "visible" set for selection.
func IDs(records []Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
