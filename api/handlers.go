/*
handlers.go - HTTP API handlers for the POS deployment tracker

PURPOSE:
  Exposes the record collection via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the tracker
  package for every rule.

ENDPOINTS:
  Records:
    GET    /api/records                 Filtered list (see query.go)
    POST   /api/records                 Create record
    GET    /api/records/{id}            Get record
    PUT    /api/records/{id}            Merge fields into record
    DELETE /api/records/{id}            Delete record (and its attachments)

  Views:
    GET    /api/dashboard               Headline stats, division cards, recent
    GET    /api/reports/divisions       Division-wise report (?from&to)
    GET    /api/quality                 Duplicate serials and blank cells
    GET    /api/divisions               Dropdown vocabularies
    GET    /api/activity                Recent whole-collection operations

  Selection and bulk edits: selection.go
  Import, export, backup:   transfer.go
  Attachments:              attachments.go

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Records:     the RecordStore (only writer of the collection)
  - Editor/Bulk: validated mutation paths over Records
  - Attachments: PDF attachment service over a blob store
  - Activity:    optional audit log of destructive operations

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unreadable spreadsheets
  - 404: Record or attachment not found
  - 409: Duplicate serial number
  - 500: Internal errors
  A failed save is NOT an error: the change is kept in memory, the
  response is 2xx and carries "warning".

SECURITY NOTE:
  No authentication. The user name printed on reports comes from the
  X-User-Name header.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/pos-tracker/attachments"
	"github.com/warp/pos-tracker/tracker"
)

const (
	// recentLimit is how many records the dashboard lists as recent activity.
	recentLimit = 5

	defaultMaxUpload = 10 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Records     *tracker.RecordStore
	Editor      *tracker.RecordEditor
	Bulk        *tracker.BulkMutator
	Attachments *attachments.Service

	// Activity and Health are optional.
	Activity tracker.ActivityLog
	Health   Pinger

	// MaxUploadBytes caps spreadsheet and backup uploads.
	MaxUploadBytes int64

	selections *selectionRegistry
	imports    *importRegistry
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler creates a handler over a loaded record store.
func NewHandler(records *tracker.RecordStore, att *attachments.Service, activity tracker.ActivityLog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if records.OnSave == nil {
		records.OnSave = observeSave
	}
	h := &Handler{
		Records:     records,
		Editor:      tracker.NewRecordEditor(records, logger),
		Bulk:        tracker.NewBulkMutator(records),
		Attachments: att,
		Activity:    activity,
		selections:  newSelectionRegistry(),
		imports:     newImportRegistry(importTTL),
		logger:      logger.With(slog.String("component", "api")),
		now:         time.Now,
	}
	recordsGauge.Set(float64(records.Len()))
	return h
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns the filtered view of the collection.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	fq, err := parseFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, "Invalid filter", err)
		return
	}

	all := h.Records.Records()
	visible, fallback := fq.apply(all)

	resp := RecordListResponse{
		View:       fq.View,
		Records:    visible,
		Total:      len(all),
		Matched:    len(visible),
		Fallback:   fallback,
		VisibleIDs: tracker.IDs(visible),
		Duplicates: tracker.DuplicateSerials(all).Sorted(),
	}
	if fallback {
		resp.Matched = 0
	}
	if fq.View == viewProgress {
		resp.Progress = make(map[int]int, len(visible))
		for _, rec := range visible {
			resp.Progress[rec.ID] = tracker.ProgressPercent(rec)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRecord returns one record.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.Records.Get(id)
	if err != nil {
		writeDomainError(w, "Record not found", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord adds a record from a JSON object of field values.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	ch, ok := decodeChanges(w, r)
	if !ok {
		return
	}
	rec, err := h.Editor.Create(r.Context(), ch)
	if err != nil && !tracker.IsPersistenceWarning(err) {
		writeDomainError(w, "Failed to create record", err)
		return
	}
	recordsGauge.Set(float64(h.Records.Len()))
	writeJSON(w, http.StatusCreated, RecordResponse{Record: rec, Warning: warningText(err)})
}

// UpdateRecord merges the given fields into a record.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	ch, ok := decodeChanges(w, r)
	if !ok {
		return
	}
	rec, err := h.Editor.Update(r.Context(), id, ch)
	if err != nil && !tracker.IsPersistenceWarning(err) {
		writeDomainError(w, "Failed to update record", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{Record: rec, Warning: warningText(err)})
}

// DeleteRecord removes a record and its attachments.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	err := h.Editor.Delete(r.Context(), id)
	if err != nil && !tracker.IsPersistenceWarning(err) {
		writeDomainError(w, "Failed to delete record", err)
		return
	}
	recordsGauge.Set(float64(h.Records.Len()))

	if h.Attachments != nil {
		if n, aerr := h.Attachments.DeleteAll(r.Context(), id); aerr != nil {
			h.logger.Warn("attachment cleanup failed", slog.Int("id", id), slog.Any("error", aerr))
		} else if n > 0 {
			h.logger.Info("attachments removed with record", slog.Int("id", id), slog.Int("count", n))
		}
	}
	writeJSON(w, http.StatusOK, MutationResponse{Status: "deleted", Warning: warningText(err)})
}

// =============================================================================
// VIEW HANDLERS
// =============================================================================

// Dashboard returns headline stats, division cards and recent records.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	records := h.Records.Records()
	resp := DashboardResponse{
		Stats:     tracker.ComputeOverallStats(records),
		Divisions: tracker.DivisionRollup(records),
		Recent:    tracker.RecentRecords(records, recentLimit),
	}
	if ts := h.Records.LastSaved(); !ts.IsZero() {
		resp.LastSaved = &ts
	}
	writeJSON(w, http.StatusOK, resp)
}

// DivisionReport returns the division-wise report, optionally scoped to
// a receipt-date range.
func (h *Handler) DivisionReport(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}
	records := tracker.FilterByReceiptDate(h.Records.Records(), scope)
	writeJSON(w, http.StatusOK, tracker.BuildDivisionReport(records))
}

// Quality returns duplicate serials and blank-cell counts.
func (h *Handler) Quality(w http.ResponseWriter, r *http.Request) {
	records := h.Records.Records()
	writeJSON(w, http.StatusOK, QualityResponse{
		DuplicateSerials: tracker.DuplicateSerials(records).Sorted(),
		Blanks:           tracker.BlankFieldStats(records, nil),
		Total:            len(records),
	})
}

// Divisions returns the dropdown vocabularies.
func (h *Handler) Divisions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DivisionsResponse{
		Divisions:             tracker.Divisions(h.Records.Records()),
		InstallationStatuses:  tracker.InstallationStatuses,
		FunctionalityStatuses: tracker.FunctionalityStatuses,
	})
}

// ListActivity returns recent whole-collection operations.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	if h.Activity == nil {
		writeJSON(w, http.StatusOK, ActivityResponse{Activity: []tracker.Activity{}})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	entries, err := h.Activity.RecentActivity(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activity", err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityResponse{Activity: entries})
}

// Healthz reports liveness and backend reachability.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Records: h.Records.Len(), Dirty: h.Records.Dirty()}
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

// logActivity appends to the audit log; failures are logged and ignored.
func (h *Handler) logActivity(ctx context.Context, kind, who, detail string, count int, opErr error) {
	if h.Activity == nil {
		return
	}
	a := tracker.Activity{
		ID:        uuid.NewString(),
		Kind:      kind,
		Actor:     who,
		Detail:    detail,
		Count:     count,
		CreatedAt: h.now().UTC(),
	}
	if opErr != nil {
		a.Error = opErr.Error()
	}
	if err := h.Activity.AppendActivity(ctx, a); err != nil {
		h.logger.Warn("activity log append failed", slog.String("kind", kind), slog.Any("error", err))
	}
}

func recordID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid record id", err)
		return 0, false
	}
	return id, true
}

func decodeChanges(w http.ResponseWriter, r *http.Request) (tracker.Changes, bool) {
	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	ch, err := tracker.ParseChanges(raw)
	if err != nil {
		writeDomainError(w, "Invalid request body", err)
		return nil, false
	}
	return ch, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status for a tracker error.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var dup *tracker.DuplicateSerialError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   message,
			Code:    "duplicate_serial",
			Details: map[string]any{"serial_no": dup.SerialNo, "existing_id": dup.ExistingID, "message": err.Error()},
		})
	case tracker.IsNotFound(err), errors.Is(err, attachments.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case tracker.IsClientError(err):
		var ve *tracker.ValidationError
		resp := ErrorResponse{Error: message, Details: err.Error()}
		if errors.As(err, &ve) {
			resp.Code = "validation"
		} else if errors.Is(err, tracker.ErrImportFormat) {
			resp.Code = "import_format"
		}
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// warningText returns the persistence warning carried by err, if any.
func warningText(err error) string {
	if err != nil && tracker.IsPersistenceWarning(err) {
		return fmt.Sprintf("saved in memory only: %v", err)
	}
	return ""
}
