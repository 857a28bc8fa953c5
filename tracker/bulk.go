package tracker

import (
	"context"
	"strings"
)

// =============================================================================
// BULK MUTATOR
// =============================================================================

// Patch is a sparse bulk update. A field takes part only when its trimmed
// value is non-empty; NoOfDevicesReceived must also parse as a number.
// ClearIssues forces issuesIfAny to "None" whatever IssuesIfAny holds.
type Patch struct {
	InstallationStatus    string `json:"installationStatus"`
	FunctionalityStatus   string `json:"functionalityStatus"`
	DateOfReceiptOfDevice string `json:"dateOfReceiptOfDevice"`
	NoOfDevicesReceived   string `json:"noOfDevicesReceived"`
	IssuesIfAny           string `json:"issuesIfAny"`
	ClearIssues           bool   `json:"clearIssues"`
}

// resolvedPatch is a validated Patch; nil means "keep".
type resolvedPatch struct {
	installation  *string
	functionality *string
	date          *string
	devices       *int
	issues        *string
}

func (p Patch) resolve() (resolvedPatch, error) {
	var rp resolvedPatch
	if v := strings.TrimSpace(p.InstallationStatus); v != "" {
		c, ok := CanonicalInstallationStatus(v)
		if !ok {
			return rp, &ValidationError{Field: string(FieldInstallationStatus), Message: "unknown status " + v}
		}
		rp.installation = &c
	}
	if v := strings.TrimSpace(p.FunctionalityStatus); v != "" {
		c, ok := CanonicalFunctionalityStatus(v)
		if !ok {
			return rp, &ValidationError{Field: string(FieldFunctionalityStatus), Message: "unknown status " + v}
		}
		rp.functionality = &c
	}
	if v := strings.TrimSpace(p.DateOfReceiptOfDevice); v != "" {
		d := NormalizeReceiptDate(v)
		rp.date = &d
	}
	if n, ok := ParseCount(p.NoOfDevicesReceived); ok {
		if n < 0 {
			return rp, &ValidationError{Field: string(FieldNoOfDevicesReceived), Message: "must not be negative"}
		}
		rp.devices = &n
	}
	if p.ClearIssues {
		none := DefaultIssues
		rp.issues = &none
	} else if v := strings.TrimSpace(p.IssuesIfAny); v != "" {
		rp.issues = &v
	}
	return rp, nil
}

// IsEmpty reports whether applying p would change nothing.
func (p Patch) IsEmpty() bool {
	rp, err := p.resolve()
	if err != nil {
		return false
	}
	return rp.installation == nil && rp.functionality == nil && rp.date == nil &&
		rp.devices == nil && rp.issues == nil
}

func (rp resolvedPatch) applyTo(r *Record) {
	if rp.installation != nil {
		r.InstallationStatus = *rp.installation
	}
	if rp.functionality != nil {
		r.FunctionalityStatus = *rp.functionality
	}
	if rp.date != nil {
		r.DateOfReceiptOfDevice = *rp.date
	}
	if rp.devices != nil {
		r.NoOfDevicesReceived = *rp.devices
	}
	if rp.issues != nil {
		r.IssuesIfAny = *rp.issues
	}
}

// ApplyPatch returns a copy of records with patch applied to every selected
// record, and how many records were selected and present. Unselected
// records are untouched. With an empty selection the copy equals records.
func ApplyPatch(records []Record, sel *SelectionSet, patch Patch) ([]Record, int, error) {
	out := cloneRecords(records)
	if sel == nil || sel.Len() == 0 {
		return out, 0, nil
	}
	rp, err := patch.resolve()
	if err != nil {
		return cloneRecords(records), 0, err
	}
	changed := 0
	for i := range out {
		if !sel.Has(out[i].ID) {
			continue
		}
		rp.applyTo(&out[i])
		changed++
	}
	return out, changed, nil
}

// BulkMutator applies patches to the selected records of a RecordStore.
type BulkMutator struct {
	store *RecordStore
}

// NewBulkMutator creates a mutator over store.
func NewBulkMutator(store *RecordStore) *BulkMutator {
	return &BulkMutator{store: store}
}

// Apply patches every selected record in one transaction and returns the
// number changed. An empty selection returns ErrEmptySelection and leaves
// the collection alone. A *PersistenceError means the change was kept in
// memory only.
func (m *BulkMutator) Apply(ctx context.Context, sel *SelectionSet, patch Patch) (int, error) {
	if sel == nil || sel.Len() == 0 {
		return 0, ErrEmptySelection
	}
	changed := 0
	err := m.store.WithTx(ctx, func(tx *Tx) error {
		out, n, err := ApplyPatch(tx.Records(), sel, patch)
		if err != nil {
			return err
		}
		tx.Replace(out)
		changed = n
		return nil
	})
	if err != nil && !IsPersistenceWarning(err) {
		return 0, err
	}
	return changed, err
}
