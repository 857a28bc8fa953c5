/*
errors.go - Centralized error types for the tracker core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these onto status codes; nothing else inspects
  error strings.

ERROR CATEGORIES:
  1. Validation errors - Rejected input (bad status, duplicate serial)
  2. Lookup errors     - Unknown record id
  3. Persistence       - Save failed; the in-memory change still stands
  4. Import format     - Spreadsheet cannot be interpreted

PERSISTENCE WARNINGS:
  A *PersistenceError returned from a mutating call means the mutation
  WAS applied in memory. Callers report it as a warning, not a failure:

    rec, err := editor.Create(ctx, changes)
    if err != nil && !tracker.IsPersistenceWarning(err) {
        return err
    }

SEE ALSO:
  - recordstore.go: Produces PersistenceError
  - editor.go: Produces ValidationError, DuplicateSerialError, NotFoundError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package tracker

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRecordNotFound is returned when an id does not match any record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrValidation is returned when input violates a record invariant.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateSerial is returned when a serial number is already used
	// by another record (case-insensitive).
	ErrDuplicateSerial = errors.New("duplicate serial number")

	// ErrPersistence is returned when the collection could not be saved.
	ErrPersistence = errors.New("persistence failed")

	// ErrImportFormat is returned when an uploaded sheet cannot be imported.
	ErrImportFormat = errors.New("invalid import format")

	// ErrEmptySelection is returned when a bulk update has nothing selected.
	ErrEmptySelection = errors.New("no records selected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// DuplicateSerialError identifies the record already holding the serial.
type DuplicateSerialError struct {
	SerialNo   string
	ExistingID int
}

func (e *DuplicateSerialError) Error() string {
	return fmt.Sprintf("serial number %q already assigned to record %d", e.SerialNo, e.ExistingID)
}

func (e *DuplicateSerialError) Unwrap() []error {
	return []error{ErrDuplicateSerial, ErrValidation}
}

// NotFoundError carries the missing id.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrRecordNotFound
}

// PersistenceError wraps a failed load or save of the collection.
type PersistenceError struct {
	Op  string // "load" or "save"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// ImportFormatError explains why a sheet was rejected.
type ImportFormatError struct {
	Reason string
}

func (e *ImportFormatError) Error() string {
	return "invalid import format: " + e.Reason
}

func (e *ImportFormatError) Unwrap() error {
	return ErrImportFormat
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrImportFormat) ||
		errors.Is(err, ErrEmptySelection)
}

// IsPersistenceWarning returns true if the operation succeeded in memory
// but could not be saved.
func IsPersistenceWarning(err error) bool {
	return errors.Is(err, ErrPersistence)
}
