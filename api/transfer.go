/*
transfer.go - Spreadsheet import/export, PDF reports, backup and restore

IMPORT (two-phase, destructive):
  POST   /api/import                 multipart "file" -> preview + token
  POST   /api/import/{token}/confirm replaces the WHOLE collection
  DELETE /api/import/{token}         discards the preview
  Tokens expire after importTTL. Nothing touches the collection until
  confirm; confirm never merges.

EXPORT:
  GET /api/export/excel              ?from&to receipt-date scope
  GET /api/export/template           blank import template
  GET /api/export/pdf/{kind}         dashboard | progress | divisions,
                                     ?orientation=P|L&from&to

BACKUP:
  GET  /api/backup                   download envelope (version 1.0)
  GET  /api/backups                  server-side snapshots (scheduler)
  POST /api/backup/restore           JSON body or multipart "file"
  POST /api/admin/clear              {"confirm": true}; id counter kept

SEE ALSO:
  - tabular/excel.go: column layout and import rules
  - report/pdf.go: PDF documents
  - tracker/recordstore.go: ReplaceAll, Restore, Clear
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/pos-tracker/report"
	"github.com/warp/pos-tracker/tabular"
	"github.com/warp/pos-tracker/tracker"
)

const (
	importTTL       = 30 * time.Minute
	previewRows     = 10
	backupMediaType = "application/json"
	pdfMediaType    = "application/pdf"
)

// =============================================================================
// PENDING IMPORTS
// =============================================================================

type pendingImport struct {
	result  tabular.ImportResult
	actor   string
	expires time.Time
}

// importRegistry holds parsed uploads awaiting confirmation.
type importRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]pendingImport
}

func newImportRegistry(ttl time.Duration) *importRegistry {
	return &importRegistry{ttl: ttl, items: make(map[string]pendingImport)}
}

func (ir *importRegistry) put(res tabular.ImportResult, who string, now time.Time) (string, time.Time) {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	ir.sweepLocked(now)
	token := uuid.NewString()
	expires := now.Add(ir.ttl)
	ir.items[token] = pendingImport{result: res, actor: who, expires: expires}
	return token, expires
}

// take removes and returns a live pending import.
func (ir *importRegistry) take(token string, now time.Time) (pendingImport, bool) {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	ir.sweepLocked(now)
	p, ok := ir.items[token]
	if ok {
		delete(ir.items, token)
	}
	return p, ok
}

func (ir *importRegistry) sweepLocked(now time.Time) {
	for token, p := range ir.items {
		if !now.Before(p.expires) {
			delete(ir.items, token)
		}
	}
}

func (ir *importRegistry) size() int {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	return len(ir.items)
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// UploadImport parses an uploaded workbook and returns a preview token.
func (h *Handler) UploadImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	file, _, err := r.FormFile("file")
	if err != nil {
		importsTotal.WithLabelValues(importRejected).Inc()
		writeError(w, http.StatusBadRequest, "Missing file upload", err)
		return
	}
	defer file.Close()

	now := h.now()
	res, err := tabular.Import(file, now)
	if err == nil && len(res.Records) == 0 {
		err = &tracker.ImportFormatError{Reason: "no rows with both Division and POST OFFICE NAME"}
	}
	if err != nil {
		importsTotal.WithLabelValues(importRejected).Inc()
		h.logger.Info("import rejected", slog.Any("error", err))
		writeDomainError(w, "Import failed", err)
		return
	}

	token, expires := h.imports.put(res, actor(r), now)
	importsTotal.WithLabelValues(importPreviewed).Inc()
	h.logger.Info("import previewed",
		slog.String("token", token), slog.Int("records", len(res.Records)),
		slog.Int("skipped", res.Skipped), slog.String("layout", string(res.Layout)))

	preview := res.Records
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	writeJSON(w, http.StatusOK, ImportPreviewResponse{
		Token:     token,
		Count:     len(res.Records),
		Skipped:   res.Skipped,
		Layout:    string(res.Layout),
		Preview:   preview,
		ExpiresAt: expires,
	})
}

// ConfirmImport replaces the collection with a previewed upload.
func (h *Handler) ConfirmImport(w http.ResponseWriter, r *http.Request) {
	p, ok := h.imports.take(chi.URLParam(r, "token"), h.now())
	if !ok {
		writeError(w, http.StatusNotFound, "Import not found or expired", nil)
		return
	}

	err := h.Records.ReplaceAll(r.Context(), p.result.Records)
	if err != nil && !tracker.IsPersistenceWarning(err) {
		writeError(w, http.StatusInternalServerError, "Import failed", err)
		return
	}
	n := len(p.result.Records)
	importsTotal.WithLabelValues(importConfirmed).Inc()
	recordsGauge.Set(float64(h.Records.Len()))
	h.logger.Info("import confirmed", slog.Int("records", n))
	h.logActivity(r.Context(), tracker.ActivityImport, firstNonEmpty(actor(r), p.actor),
		fmt.Sprintf("%s layout, %d skipped", p.result.Layout, p.result.Skipped), n, err)

	writeJSON(w, http.StatusOK, MutationResponse{Status: "imported", Count: n, Warning: warningText(err)})
}

// CancelImport discards a previewed upload.
func (h *Handler) CancelImport(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.imports.take(chi.URLParam(r, "token"), h.now()); !ok {
		writeError(w, http.StatusNotFound, "Import not found or expired", nil)
		return
	}
	importsTotal.WithLabelValues(importCancelled).Inc()
	writeJSON(w, http.StatusOK, MutationResponse{Status: "cancelled"})
}

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

// ExportExcel downloads the (optionally date-scoped) collection.
func (h *Handler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}
	buf, err := tabular.Export(tracker.FilterByReceiptDate(h.Records.Records(), scope))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	exportsTotal.WithLabelValues("excel").Inc()
	writeFile(w, tabular.ContentType, tabular.ExportFilename(h.now()), buf.Bytes())
}

// ExportTemplate downloads the blank import template.
func (h *Handler) ExportTemplate(w http.ResponseWriter, r *http.Request) {
	buf, err := tabular.Template()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build template", err)
		return
	}
	exportsTotal.WithLabelValues("template").Inc()
	writeFile(w, tabular.ContentType, tabular.TemplateFilename, buf.Bytes())
}

// ExportPDF renders one of the printable reports.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}
	orientation := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("orientation")))
	switch orientation {
	case "", report.Portrait, report.Landscape:
	default:
		writeError(w, http.StatusBadRequest, "Invalid orientation", errors.New("expected P or L"))
		return
	}

	now := h.now()
	opt := report.Options{
		Orientation: orientation,
		GeneratedBy: actor(r),
		GeneratedAt: now,
		Scope:       scope,
	}
	records := tracker.FilterByReceiptDate(h.Records.Records(), scope)

	var (
		data  []byte
		title string
	)
	switch kind := chi.URLParam(r, "kind"); kind {
	case "dashboard":
		title = report.DashboardTitle
		data, err = report.DashboardPDF(records, opt)
	case "progress":
		title = report.ProgressTitle
		data, err = report.ProgressPDF(records, opt)
	case "divisions":
		title = report.DivisionsTitle
		data, err = report.DivisionReportPDF(tracker.BuildDivisionReport(records), opt)
	default:
		writeError(w, http.StatusNotFound, "Unknown report", errors.New(kind))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render report", err)
		return
	}
	exportsTotal.WithLabelValues("pdf").Inc()
	writeFile(w, pdfMediaType, report.Filename(title, now), data)
}

// =============================================================================
// BACKUP / RESTORE / CLEAR
// =============================================================================

// BackupFilename is the download name for a backup made at t.
func BackupFilename(t time.Time) string {
	return fmt.Sprintf("POS_Backup_%s.json", t.Format(tracker.ISODateLayout))
}

// DownloadBackup returns the backup envelope as a file.
func (h *Handler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	b := h.Records.Backup()
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build backup", err)
		return
	}
	exportsTotal.WithLabelValues("backup").Inc()
	h.logActivity(r.Context(), tracker.ActivityBackup, actor(r), "download", len(b.Locations), nil)
	writeFile(w, backupMediaType, BackupFilename(h.now()), data)
}

// ListStoredBackups lists backups written by the scheduler.
func (h *Handler) ListStoredBackups(w http.ResponseWriter, r *http.Request) {
	if h.Attachments == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	infos, err := h.Attachments.Backups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// RestoreBackup replaces the collection with an uploaded backup.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	body, err := backupBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing backup", err)
		return
	}
	var b tracker.Backup
	if err := json.Unmarshal(body, &b); err != nil {
		writeError(w, http.StatusBadRequest, "Error restoring backup", err)
		return
	}

	err = h.Records.Restore(r.Context(), b)
	if err != nil && !tracker.IsPersistenceWarning(err) {
		writeError(w, http.StatusInternalServerError, "Error restoring backup", err)
		return
	}
	n := h.Records.Len()
	recordsGauge.Set(float64(n))
	h.logger.Info("backup restored", slog.Int("records", n), slog.String("version", b.Version))
	h.logActivity(r.Context(), tracker.ActivityRestore, actor(r), "version "+b.Version, n, err)

	writeJSON(w, http.StatusOK, RestoreResponse{Restored: n, NextID: h.Records.PeekNextID(), Warning: warningText(err)})
}

// ClearRequest must carry confirm=true.
type ClearRequest struct {
	Confirm bool `json:"confirm"`
}

// ClearAll deletes every record.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	var req ClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Confirm {
		writeError(w, http.StatusBadRequest, "Clearing all data requires {\"confirm\": true}", err)
		return
	}
	n := h.Records.Len()
	err := h.Records.Clear(r.Context())
	if err != nil && !tracker.IsPersistenceWarning(err) {
		writeError(w, http.StatusInternalServerError, "Failed to clear data", err)
		return
	}
	recordsGauge.Set(0)
	h.logger.Warn("collection cleared", slog.Int("removed", n))
	h.logActivity(r.Context(), tracker.ActivityClear, actor(r), "", n, err)

	writeJSON(w, http.StatusOK, MutationResponse{Status: "cleared", Count: n, Warning: warningText(err)})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) maxUpload() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return defaultMaxUpload
}

// backupBody reads a backup from a multipart "file" field or the raw body.
func backupBody(r *http.Request) ([]byte, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	data, err := io.ReadAll(r.Body)
	if err == nil && len(bytes.TrimSpace(data)) == 0 {
		err = errors.New("empty body")
	}
	return data, err
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
