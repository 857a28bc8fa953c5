package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// PDFContentType is the only accepted attachment type.
	PDFContentType = "application/pdf"

	// DefaultMaxBytes caps a single upload.
	DefaultMaxBytes = 10 << 20

	recordPrefix = "records/"
	backupPrefix = "backups/"
)

var (
	// ErrNotPDF is returned when an upload is not a PDF document.
	ErrNotPDF = errors.New("attachment must be a PDF")

	// ErrTooLarge is returned when an upload exceeds the size cap.
	ErrTooLarge = errors.New("attachment too large")
)

// Attachment is one PDF linked to a record.
type Attachment struct {
	ID         string    `json:"id"`
	RecordID   int       `json:"record_id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Service stores PDF attachments per record on a BlobStore.
// Keys look like records/<recordID>/<uuid>.pdf; uuids are version 7 so
// key order is upload order.
type Service struct {
	blobs    BlobStore
	maxBytes int64
	logger   *slog.Logger
}

// NewService wraps blobs. maxBytes <= 0 selects DefaultMaxBytes.
func NewService(blobs BlobStore, maxBytes int64, logger *slog.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		blobs:    blobs,
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "attachments"), slog.String("driver", string(blobs.Driver()))),
	}
}

// Blobs exposes the underlying store.
func (s *Service) Blobs() BlobStore { return s.blobs }

// Upload validates r as a PDF and stores it under recordID.
func (s *Service) Upload(ctx context.Context, recordID int, name string, r io.Reader) (Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return Attachment{}, err
	}
	if int64(len(data)) > s.maxBytes {
		return Attachment{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}
	if !IsPDF(data) {
		return Attachment{}, ErrNotPDF
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Attachment{}, err
	}
	now := time.Now().UTC()
	name = cleanName(name)
	key := recordKey(recordID, id.String())
	info, err := s.blobs.Put(ctx, key, bytes.NewReader(data), PutOptions{
		ContentType: PDFContentType,
		Metadata: map[string]string{
			"name":        name,
			"record_id":   strconv.Itoa(recordID),
			"uploaded_at": now.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return Attachment{}, fmt.Errorf("store attachment: %w", err)
	}
	s.logger.Info("attachment stored", slog.Int("record_id", recordID), slog.String("key", key), slog.Int64("size", info.Size))
	return Attachment{ID: id.String(), RecordID: recordID, Name: name, Size: info.Size, UploadedAt: now}, nil
}

// List returns a record's attachments in upload order.
func (s *Service) List(ctx context.Context, recordID int) ([]Attachment, error) {
	infos, err := s.blobs.List(ctx, recordDir(recordID))
	if err != nil {
		return nil, err
	}
	out := make([]Attachment, 0, len(infos))
	for _, info := range infos {
		if info.Metadata == nil {
			// Some drivers do not return metadata from listings.
			if full, err := s.blobs.Head(ctx, info.Key); err == nil {
				info = full
			}
		}
		out = append(out, toAttachment(recordID, info))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Open streams one attachment. The caller closes the reader.
func (s *Service) Open(ctx context.Context, recordID int, id string) (Attachment, io.ReadCloser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Attachment{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info, rc, err := s.blobs.Get(ctx, recordKey(recordID, id))
	if err != nil {
		return Attachment{}, nil, err
	}
	return toAttachment(recordID, info), rc, nil
}

// DeleteAll removes every attachment of a record and returns how many.
func (s *Service) DeleteAll(ctx context.Context, recordID int) (int, error) {
	infos, err := s.blobs.List(ctx, recordDir(recordID))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, info := range infos {
		ok, err := s.blobs.Delete(ctx, info.Key)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		s.logger.Info("attachments removed", slog.Int("record_id", recordID), slog.Int("count", n))
	}
	return n, nil
}

// Counts returns the number of attachments per record id.
func (s *Service) Counts(ctx context.Context) (map[int]int, error) {
	infos, err := s.blobs.List(ctx, recordPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[int]int)
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, recordPrefix)
		idPart, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		if id, err := strconv.Atoi(idPart); err == nil {
			out[id]++
		}
	}
	return out, nil
}

// StoreBackup writes a backup document under backups/<name>, replacing
// an earlier document of the same name.
func (s *Service) StoreBackup(ctx context.Context, name string, data []byte) (Info, error) {
	key := backupPrefix + cleanName(name)
	if _, err := s.blobs.Delete(ctx, key); err != nil {
		return Info{}, fmt.Errorf("replace %s: %w", key, err)
	}
	return s.blobs.Put(ctx, key, bytes.NewReader(data), PutOptions{ContentType: "application/json"})
}

// Backups lists stored backup documents, oldest first.
func (s *Service) Backups(ctx context.Context) ([]Info, error) {
	return s.blobs.List(ctx, backupPrefix)
}

// IsPDF checks the PDF magic number.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func recordDir(recordID int) string {
	return recordPrefix + strconv.Itoa(recordID) + "/"
}

func recordKey(recordID int, id string) string {
	return recordDir(recordID) + id + ".pdf"
}

func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	return name
}

func toAttachment(recordID int, info Info) Attachment {
	a := Attachment{
		ID:         strings.TrimSuffix(path.Base(info.Key), ".pdf"),
		RecordID:   recordID,
		Name:       info.Metadata["name"],
		Size:       info.Size,
		UploadedAt: info.LastModified,
	}
	if ts, err := time.Parse(time.RFC3339Nano, info.Metadata["uploaded_at"]); err == nil {
		a.UploadedAt = ts
	}
	if a.Name == "" {
		a.Name = a.ID + ".pdf"
	}
	return a
}
