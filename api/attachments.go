package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/pos-tracker/attachments"
)

// ListAttachments lists a record's PDF attachments.
func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.attachmentRecord(w, r)
	if !ok {
		return
	}
	list, err := h.Attachments.List(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attachments", err)
		return
	}
	writeJSON(w, http.StatusOK, AttachmentListResponse{RecordID: id, Attachments: list})
}

// UploadAttachment stores a multipart "file" PDF against a record.
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.attachmentRecord(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload()+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file upload", err)
		return
	}
	defer file.Close()

	a, err := h.Attachments.Upload(r.Context(), id, header.Filename, file)
	switch {
	case errors.Is(err, attachments.ErrNotPDF):
		writeError(w, http.StatusUnsupportedMediaType, "Only PDF files can be attached", err)
		return
	case errors.Is(err, attachments.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Attachment too large", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to store attachment", err)
		return
	}
	attachmentsUploadedTotal.Inc()
	writeJSON(w, http.StatusCreated, a)
}

// DownloadAttachment streams one attachment.
func (h *Handler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.attachmentRecord(w, r)
	if !ok {
		return
	}
	a, rc, err := h.Attachments.Open(r.Context(), id, chi.URLParam(r, "attachmentID"))
	if err != nil {
		writeDomainError(w, "Attachment not found", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", attachments.PDFContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.Name}))
	if a.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("attachment download interrupted", slog.Int("record_id", id), slog.Any("error", err))
	}
}

// AttachmentCounts returns the number of attachments per record id.
func (h *Handler) AttachmentCounts(w http.ResponseWriter, r *http.Request) {
	if h.Attachments == nil {
		writeJSON(w, http.StatusOK, map[int]int{})
		return
	}
	counts, err := h.Attachments.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count attachments", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// attachmentRecord resolves {id} to an existing record and checks that
// attachments are configured.
func (h *Handler) attachmentRecord(w http.ResponseWriter, r *http.Request) (int, bool) {
	if h.Attachments == nil {
		writeError(w, http.StatusServiceUnavailable, "Attachments are not configured", nil)
		return 0, false
	}
	id, ok := recordID(w, r)
	if !ok {
		return 0, false
	}
	if _, err := h.Records.Get(id); err != nil {
		writeDomainError(w, "Record not found", err)
		return 0, false
	}
	return id, true
}
