package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is the stable key of a record attribute. Keys match the JSON names.
type Field string

const (
	FieldSlNo                    Field = "slNo"
	FieldDivision                Field = "division"
	FieldPostOfficeName          Field = "postOfficeName"
	FieldPostOfficeID            Field = "postOfficeId"
	FieldOfficeType              Field = "officeType"
	FieldContactPersonName       Field = "contactPersonName"
	FieldContactPersonNo         Field = "contactPersonNo"
	FieldAltContactNo            Field = "altContactNo"
	FieldContactEmail            Field = "contactEmail"
	FieldLocationAddress         Field = "locationAddress"
	FieldLocation                Field = "location"
	FieldCity                    Field = "city"
	FieldState                   Field = "state"
	FieldPincode                 Field = "pincode"
	FieldNumberOfPosToBeDeployed Field = "numberOfPosToBeDeployed"
	FieldTypeOfPosTerminal       Field = "typeOfPosTerminal"
	FieldDateOfReceiptOfDevice   Field = "dateOfReceiptOfDevice"
	FieldNoOfDevicesReceived     Field = "noOfDevicesReceived"
	FieldSerialNo                Field = "serialNo"
	FieldMID                     Field = "mid"
	FieldTID                     Field = "tid"
	FieldInstallationStatus      Field = "installationStatus"
	FieldFunctionalityStatus     Field = "functionalityStatus"
	FieldIssuesIfAny             Field = "issuesIfAny"

	// FieldID is not a display column; it only appears in persisted JSON.
	FieldID Field = "id"
)

// Column pairs a field with its spreadsheet/table header label.
type Column struct {
	Field   Field
	Label   string
	Numeric bool
}

// Columns is the canonical column order used by the detail table and the
// spreadsheet layout.
var Columns = []Column{
	{FieldSlNo, "Sl.No.", true},
	{FieldDivision, "Division", false},
	{FieldPostOfficeName, "POST OFFICE NAME", false},
	{FieldPostOfficeID, "Post Office ID", false},
	{FieldOfficeType, "Office Type", false},
	{FieldContactPersonName, "NAME OF CONTACT PERSON AT THE LOCATION", false},
	{FieldContactPersonNo, "CONTACT PERSON NO.", false},
	{FieldAltContactNo, "ALT CONTACT PERSON NO.", false},
	{FieldContactEmail, "CONTACT EMAIL ID", false},
	{FieldLocationAddress, "LOCATION ADDRESS", false},
	{FieldLocation, "LOCATION", false},
	{FieldCity, "CITY", false},
	{FieldState, "STATE", false},
	{FieldPincode, "PINCODE", false},
	{FieldNumberOfPosToBeDeployed, "NUMBER OF POS TO BE DEPLOYED", true},
	{FieldTypeOfPosTerminal, "TYPE OF POS TERMINAL", false},
	{FieldDateOfReceiptOfDevice, "Date of receipt of device", false},
	{FieldNoOfDevicesReceived, "No of devices received", true},
	{FieldSerialNo, "Serial No", false},
	{FieldMID, "MID", false},
	{FieldTID, "TID", false},
	{FieldInstallationStatus, "Installation status", false},
	{FieldFunctionalityStatus, "Functionality / Working status of POS machines", false},
	{FieldIssuesIfAny, "Issues if any", false},
}

// Search field presets for the three list views.
var (
	OfficeListSearchFields = []Field{FieldPostOfficeName, FieldDivision, FieldCity}
	ProgressSearchFields   = []Field{FieldPostOfficeName, FieldDivision}
	DetailFields           = columnFields()
)

func columnFields() []Field {
	out := make([]Field, len(Columns))
	for i, c := range Columns {
		out[i] = c.Field
	}
	return out
}

// LookupField resolves a field key. The id key is accepted as well.
func LookupField(key string) (Field, bool) {
	f := Field(key)
	if f == FieldID {
		return f, true
	}
	for _, c := range Columns {
		if c.Field == f {
			return f, true
		}
	}
	return "", false
}

func (f Field) numeric() bool {
	switch f {
	case FieldID, FieldSlNo, FieldNumberOfPosToBeDeployed, FieldNoOfDevicesReceived:
		return true
	}
	return false
}

// Get returns the field's value rendered as text. Numbers render in base 10.
func (r Record) Get(f Field) string {
	if p := r.intField(f); p != nil {
		return strconv.Itoa(*p)
	}
	if p := r.stringField(f); p != nil {
		return *p
	}
	return ""
}

// Set writes raw text into a field. Numeric fields use ParseCount and a
// blank value means zero.
func (r *Record) Set(f Field, v string) error {
	if p := r.intField(f); p != nil {
		if strings.TrimSpace(v) == "" {
			*p = 0
			return nil
		}
		n, ok := ParseCount(v)
		if !ok {
			return &ValidationError{Field: string(f), Message: fmt.Sprintf("%q is not a number", v)}
		}
		*p = n
		return nil
	}
	if p := r.stringField(f); p != nil {
		*p = v
		return nil
	}
	return &ValidationError{Field: string(f), Message: "unknown field"}
}

func (r *Record) intField(f Field) *int {
	switch f {
	case FieldID:
		return &r.ID
	case FieldSlNo:
		return &r.SlNo
	case FieldNumberOfPosToBeDeployed:
		return &r.NumberOfPosToBeDeployed
	case FieldNoOfDevicesReceived:
		return &r.NoOfDevicesReceived
	}
	return nil
}

func (r *Record) stringField(f Field) *string {
	switch f {
	case FieldDivision:
		return &r.Division
	case FieldPostOfficeName:
		return &r.PostOfficeName
	case FieldPostOfficeID:
		return &r.PostOfficeID
	case FieldOfficeType:
		return &r.OfficeType
	case FieldContactPersonName:
		return &r.ContactPersonName
	case FieldContactPersonNo:
		return &r.ContactPersonNo
	case FieldAltContactNo:
		return &r.AltContactNo
	case FieldContactEmail:
		return &r.ContactEmail
	case FieldLocationAddress:
		return &r.LocationAddress
	case FieldLocation:
		return &r.Location
	case FieldCity:
		return &r.City
	case FieldState:
		return &r.State
	case FieldPincode:
		return &r.Pincode
	case FieldTypeOfPosTerminal:
		return &r.TypeOfPosTerminal
	case FieldDateOfReceiptOfDevice:
		return &r.DateOfReceiptOfDevice
	case FieldSerialNo:
		return &r.SerialNo
	case FieldMID:
		return &r.MID
	case FieldTID:
		return &r.TID
	case FieldInstallationStatus:
		return &r.InstallationStatus
	case FieldFunctionalityStatus:
		return &r.FunctionalityStatus
	case FieldIssuesIfAny:
		return &r.IssuesIfAny
	}
	return nil
}

// ParseCount reads a leading integer the way spreadsheet users type them:
// surrounding spaces, an optional sign, then digits. Trailing text after
// the digits ("12 units", "3.0") is ignored. No digits means no number.
func ParseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	start := i
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		if n > (math.MaxInt32-int(s[i]-'0'))/10 {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == start {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// TextOf renders a decoded JSON scalar as text. Whole numbers render
// without a fraction so 5 and "5" read the same.
func TextOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// UnmarshalJSON accepts records written by older clients, where numbers
// may arrive as strings and text fields as numbers (e.g. pincodes).
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	var out Record
	for k, v := range raw {
		f, ok := LookupField(k)
		if !ok {
			continue
		}
		text := TextOf(v)
		if f.numeric() {
			n, _ := ParseCount(text)
			*out.intField(f) = n
			continue
		}
		*out.stringField(f) = text
	}
	*r = out
	return nil
}

// Changes is a sparse set of field assignments for RecordEditor.
// A key that is present overwrites the field, even with an empty value.
type Changes map[Field]string

// ParseChanges converts a decoded JSON object into Changes. Identity keys
// (id, slNo) are dropped; unknown keys are rejected.
func ParseChanges(raw map[string]any) (Changes, error) {
	ch := make(Changes, len(raw))
	for k, v := range raw {
		f, ok := LookupField(k)
		if !ok {
			return nil, &ValidationError{Field: k, Message: "unknown field"}
		}
		if f == FieldID || f == FieldSlNo {
			continue
		}
		ch[f] = TextOf(v)
	}
	return ch, nil
}
