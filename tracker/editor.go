/*
editor.go - Single-record create, update and delete

PURPOSE:
  RecordEditor is the only path for manual edits. It enforces the record
  invariants before committing through RecordStore.WithTx.

RULES:
  Create: id = NextID(), slNo = count + 1, defaults from NewRecord().
          Division and post office name are required.
  Update: shallow merge; keys present in Changes overwrite, others keep.
          id and slNo never change.
  Delete: remove, then renumber slNo to 1..N in order.
  Serial: a non-blank serial number must be unique across the collection,
          compared trimmed and case-insensitively (the record itself
          excluded). Violations return *DuplicateSerialError.
  Status: installation/functionality values must be vocabulary members
          (any casing is accepted and canonicalized).

SEE ALSO:
  - fields.go: Changes, ParseChanges
  - errors.go: ValidationError, DuplicateSerialError, NotFoundError
*/
package tracker

import (
	"context"
	"log/slog"
	"strings"
)

// RecordEditor performs validated single-record mutations.
type RecordEditor struct {
	store  *RecordStore
	logger *slog.Logger
}

// NewRecordEditor creates an editor over store.
func NewRecordEditor(store *RecordStore, logger *slog.Logger) *RecordEditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordEditor{store: store, logger: logger.With(slog.String("component", "editor"))}
}

// Create appends a new record built from defaults plus ch.
func (e *RecordEditor) Create(ctx context.Context, ch Changes) (Record, error) {
	var created Record
	err := e.store.WithTx(ctx, func(tx *Tx) error {
		rec := NewRecord()
		if err := applyChanges(&rec, ch); err != nil {
			return err
		}
		if err := requireIdentity(rec); err != nil {
			return err
		}
		if err := checkSerial(tx.Records(), rec, 0); err != nil {
			return err
		}
		rec.ID = tx.NextID()
		rec.SlNo = len(tx.Records()) + 1
		tx.Append(rec)
		created = rec
		return nil
	})
	if err != nil && !IsPersistenceWarning(err) {
		return Record{}, err
	}
	e.logger.Info("record created", slog.Int("id", created.ID), slog.String("division", created.Division))
	return created, err
}

// Update merges ch into the record with the given id.
func (e *RecordEditor) Update(ctx context.Context, id int, ch Changes) (Record, error) {
	var updated Record
	err := e.store.WithTx(ctx, func(tx *Tx) error {
		i := tx.Find(id)
		if i < 0 {
			return &NotFoundError{ID: id}
		}
		rec := tx.Records()[i]
		if err := applyChanges(&rec, ch); err != nil {
			return err
		}
		if err := requireIdentity(rec); err != nil {
			return err
		}
		if err := checkSerial(tx.Records(), rec, id); err != nil {
			return err
		}
		tx.Records()[i] = rec
		updated = rec
		return nil
	})
	if err != nil && !IsPersistenceWarning(err) {
		return Record{}, err
	}
	e.logger.Info("record updated", slog.Int("id", id), slog.Int("fields", len(ch)))
	return updated, err
}

// Delete removes the record with the given id and renumbers slNo.
func (e *RecordEditor) Delete(ctx context.Context, id int) error {
	err := e.store.WithTx(ctx, func(tx *Tx) error {
		i := tx.Find(id)
		if i < 0 {
			return &NotFoundError{ID: id}
		}
		rs := tx.Records()
		out := make([]Record, 0, len(rs)-1)
		out = append(out, rs[:i]...)
		out = append(out, rs[i+1:]...)
		renumber(out)
		tx.Replace(out)
		return nil
	})
	if err != nil && !IsPersistenceWarning(err) {
		return err
	}
	e.logger.Info("record deleted", slog.Int("id", id))
	return err
}

// applyChanges writes ch into rec, validating statuses and numbers.
func applyChanges(rec *Record, ch Changes) error {
	for f, v := range ch {
		switch f {
		case FieldID, FieldSlNo:
			continue
		case FieldInstallationStatus:
			c, ok := CanonicalInstallationStatus(v)
			if !ok {
				return &ValidationError{Field: string(f), Message: "unknown status " + v}
			}
			v = c
		case FieldFunctionalityStatus:
			c, ok := CanonicalFunctionalityStatus(v)
			if !ok {
				return &ValidationError{Field: string(f), Message: "unknown status " + v}
			}
			v = c
		case FieldDateOfReceiptOfDevice:
			v = NormalizeReceiptDate(v)
		case FieldIssuesIfAny:
			if strings.TrimSpace(v) == "" {
				v = DefaultIssues
			}
		case FieldTypeOfPosTerminal:
			if strings.TrimSpace(v) == "" {
				v = DefaultTerminalType
			}
		case FieldNumberOfPosToBeDeployed, FieldNoOfDevicesReceived:
			if n, ok := ParseCount(v); ok && n < 0 {
				return &ValidationError{Field: string(f), Message: "must not be negative"}
			}
		}
		if err := rec.Set(f, v); err != nil {
			return err
		}
	}
	return nil
}

func requireIdentity(rec Record) error {
	if strings.TrimSpace(rec.Division) == "" {
		return &ValidationError{Field: string(FieldDivision), Message: "required"}
	}
	if strings.TrimSpace(rec.PostOfficeName) == "" {
		return &ValidationError{Field: string(FieldPostOfficeName), Message: "required"}
	}
	return nil
}

// checkSerial rejects rec if another record (id != self) holds its serial.
func checkSerial(records []Record, rec Record, self int) error {
	key := NormalizeSerial(rec.SerialNo)
	if key == "" {
		return nil
	}
	for _, other := range records {
		if other.ID != self && NormalizeSerial(other.SerialNo) == key {
			return &DuplicateSerialError{SerialNo: strings.TrimSpace(rec.SerialNo), ExistingID: other.ID}
		}
	}
	return nil
}
