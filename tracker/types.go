/*
types.go - Core domain types for the POS deployment tracker

PURPOSE:
  Defines the DeploymentRecord (one post office location's POS rollout
  state) and the closed status vocabularies. Everything else in this
  package (filtering, aggregation, bulk edits, persistence) operates on
  slices of these values.

KEY CONCEPTS:
  Record:              One location. Identified by ID, displayed by SlNo.
  InstallationStatus:  Pending -> Device Received -> In Progress -> Completed
  FunctionalityStatus: Not Tested | Working | Not Working

VALUE SEMANTICS:
  Record holds only strings and ints, so copying a []Record copies the
  records. The RecordStore hands out copies; callers never alias its state.

SEE ALSO:
  - fields.go: Field keys, column labels, string accessors
  - dates.go: Receipt date parsing and display
  - recordstore.go: The authoritative collection
*/
package tracker

import (
	"strings"
	"time"
)

// =============================================================================
// STATUS VOCABULARIES
// =============================================================================

const (
	InstallPending        = "Pending"
	InstallDeviceReceived = "Device Received"
	InstallInProgress     = "In Progress"
	InstallCompleted      = "Completed"
)

const (
	FuncNotTested  = "Not Tested"
	FuncWorking    = "Working"
	FuncNotWorking = "Not Working"
)

// InstallationStatuses lists the installation vocabulary in lifecycle order.
var InstallationStatuses = []string{InstallPending, InstallDeviceReceived, InstallInProgress, InstallCompleted}

// FunctionalityStatuses lists the functionality vocabulary.
var FunctionalityStatuses = []string{FuncNotTested, FuncWorking, FuncNotWorking}

const (
	DefaultTerminalType = "EZETAP ANDROID X990"
	DefaultIssues       = "None"
	DefaultOfficeType   = "Sub Post Office"
	DefaultContactName  = "Not Provided"

	// UnassignedDivision labels records with a blank division in rollups and reports.
	UnassignedDivision = "—"

	// TrailingDivision always sorts after every other division in reports.
	TrailingDivision = "RMS HB Division"
)

// CanonicalInstallationStatus maps s onto the installation vocabulary,
// ignoring case and surrounding whitespace.
func CanonicalInstallationStatus(s string) (string, bool) {
	return canonical(s, InstallationStatuses)
}

// CanonicalFunctionalityStatus maps s onto the functionality vocabulary.
func CanonicalFunctionalityStatus(s string) (string, bool) {
	return canonical(s, FunctionalityStatuses)
}

func canonical(s string, vocab []string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, v := range vocab {
		if strings.EqualFold(s, v) {
			return v, true
		}
	}
	return "", false
}

// =============================================================================
// DEPLOYMENT RECORD
// =============================================================================

// Record is one post office location and its POS deployment state.
// JSON field names match the persisted envelope format.
type Record struct {
	ID                      int    `json:"id"`
	SlNo                    int    `json:"slNo"`
	Division                string `json:"division"`
	PostOfficeName          string `json:"postOfficeName"`
	PostOfficeID            string `json:"postOfficeId"`
	OfficeType              string `json:"officeType"`
	ContactPersonName       string `json:"contactPersonName"`
	ContactPersonNo         string `json:"contactPersonNo"`
	AltContactNo            string `json:"altContactNo"`
	ContactEmail            string `json:"contactEmail"`
	LocationAddress         string `json:"locationAddress"`
	Location                string `json:"location"`
	City                    string `json:"city"`
	State                   string `json:"state"`
	Pincode                 string `json:"pincode"`
	NumberOfPosToBeDeployed int    `json:"numberOfPosToBeDeployed"`
	TypeOfPosTerminal       string `json:"typeOfPosTerminal"`
	DateOfReceiptOfDevice   string `json:"dateOfReceiptOfDevice"`
	NoOfDevicesReceived     int    `json:"noOfDevicesReceived"`
	SerialNo                string `json:"serialNo"`
	MID                     string `json:"mid"`
	TID                     string `json:"tid"`
	InstallationStatus      string `json:"installationStatus"`
	FunctionalityStatus     string `json:"functionalityStatus"`
	IssuesIfAny             string `json:"issuesIfAny"`
}

// HasIssue reports whether the record carries a real issue: non-blank
// text that is not "none" in any casing.
func (r Record) HasIssue() bool {
	return HasIssueText(r.IssuesIfAny)
}

// HasIssueText applies the issue rule to raw text.
func HasIssueText(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, DefaultIssues)
}

// IsCompleted reports whether installation has finished.
func (r Record) IsCompleted() bool {
	return strings.TrimSpace(r.InstallationStatus) == InstallCompleted
}

// ReceiptDate returns the parsed receipt date, if any.
func (r Record) ReceiptDate() (time.Time, bool) {
	return ParseReceiptDate(r.DateOfReceiptOfDevice)
}

// normalize coerces loaded or imported data into the record invariants.
// Unknown status text falls back to the vocabulary default.
func (r *Record) normalize() {
	if v, ok := CanonicalInstallationStatus(r.InstallationStatus); ok {
		r.InstallationStatus = v
	} else {
		r.InstallationStatus = InstallPending
	}
	if v, ok := CanonicalFunctionalityStatus(r.FunctionalityStatus); ok {
		r.FunctionalityStatus = v
	} else {
		r.FunctionalityStatus = FuncNotTested
	}
	r.DateOfReceiptOfDevice = NormalizeReceiptDate(r.DateOfReceiptOfDevice)
}

// NewRecord returns a record carrying the defaults used for manual entry.
func NewRecord() Record {
	return Record{
		TypeOfPosTerminal:   DefaultTerminalType,
		InstallationStatus:  InstallPending,
		FunctionalityStatus: FuncNotTested,
		IssuesIfAny:         DefaultIssues,
	}
}

func cloneRecords(rs []Record) []Record {
	if rs == nil {
		return []Record{}
	}
	out := make([]Record, len(rs))
	copy(out, rs)
	return out
}

func renumber(rs []Record) {
	for i := range rs {
		rs[i].SlNo = i + 1
	}
}

func indexOf(rs []Record, id int) int {
	for i := range rs {
		if rs[i].ID == id {
			return i
		}
	}
	return -1
}
