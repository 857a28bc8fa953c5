/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Records themselves
  travel in their persisted camelCase form (tracker.Record); everything
  wrapped around them uses snake_case like the rest of the API.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers

WARNINGS:
  A mutation whose in-memory change succeeded but could not be persisted
  still answers 2xx and carries the failure in "warning". Clients should
  surface it and may retry via any later mutation.

SEE ALSO:
  - handlers.go: Uses these types
  - tracker/types.go: Record
*/
package api

import (
	"time"

	"github.com/warp/pos-tracker/attachments"
	"github.com/warp/pos-tracker/tracker"
)

// =============================================================================
// RECORDS
// =============================================================================

// RecordListResponse is a filtered view of the collection.
type RecordListResponse struct {
	View     string           `json:"view"`
	Records  []tracker.Record `json:"records"`
	Total    int              `json:"total"`
	Matched  int              `json:"matched"`
	Fallback bool             `json:"fallback"`

	// VisibleIDs are the ids shown, for select-all/clear-visible.
	VisibleIDs []int `json:"visible_ids"`

	// Progress is keyed by record id; only set for the progress view.
	Progress map[int]int `json:"progress,omitempty"`

	// Duplicates lists serial numbers held by more than one record.
	Duplicates []string `json:"duplicate_serials"`
}

// RecordResponse wraps a single record after a mutation.
type RecordResponse struct {
	Record  tracker.Record `json:"record"`
	Warning string         `json:"warning,omitempty"`
}

// MutationResponse acknowledges a mutation without a record body.
type MutationResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// =============================================================================
// DASHBOARD / REPORTS
// =============================================================================

// DashboardResponse is the dashboard view.
type DashboardResponse struct {
	Stats     tracker.OverallStats    `json:"stats"`
	Divisions []tracker.DivisionStats `json:"divisions"`
	Recent    []tracker.Record        `json:"recent"`
	LastSaved *time.Time              `json:"last_saved,omitempty"`
}

// QualityResponse reports data-quality signals.
type QualityResponse struct {
	DuplicateSerials []string           `json:"duplicate_serials"`
	Blanks           tracker.BlankStats `json:"blanks"`
	Total            int                `json:"total"`
}

// DivisionsResponse lists distinct divisions for dropdowns.
type DivisionsResponse struct {
	Divisions             []string `json:"divisions"`
	InstallationStatuses  []string `json:"installation_statuses"`
	FunctionalityStatuses []string `json:"functionality_statuses"`
}

// =============================================================================
// SELECTION / BULK
// =============================================================================

// SelectionRequest changes the caller's selection.
type SelectionRequest struct {
	// Action is add | remove | toggle | clear | select_visible | clear_visible.
	Action string `json:"action"`
	IDs    []int  `json:"ids"`
}

// SelectionResponse is the caller's selection after a change.
type SelectionResponse struct {
	IDs   []int `json:"ids"`
	Count int   `json:"count"`
}

// BulkRequest applies a patch to the caller's selection, or to IDs when
// given explicitly.
type BulkRequest struct {
	IDs   []int         `json:"ids,omitempty"`
	Patch tracker.Patch `json:"patch"`
}

// BulkResponse reports how many records changed. An empty selection is
// not an error: Changed is 0 and Message explains why.
type BulkResponse struct {
	Changed int    `json:"changed"`
	Message string `json:"message,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// =============================================================================
// IMPORT / BACKUP
// =============================================================================

// ImportPreviewResponse describes a parsed upload awaiting confirmation.
type ImportPreviewResponse struct {
	Token     string           `json:"token"`
	Count     int              `json:"count"`
	Skipped   int              `json:"skipped"`
	Layout    string           `json:"layout"`
	Preview   []tracker.Record `json:"preview"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// RestoreResponse acknowledges a restored backup.
type RestoreResponse struct {
	Restored int    `json:"restored"`
	NextID   int    `json:"next_location_id"`
	Warning  string `json:"warning,omitempty"`
}

// ActivityResponse lists recent whole-collection operations.
type ActivityResponse struct {
	Activity []tracker.Activity `json:"activity"`
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// AttachmentListResponse lists a record's attachments.
type AttachmentListResponse struct {
	RecordID    int                      `json:"record_id"`
	Attachments []attachments.Attachment `json:"attachments"`
}

// =============================================================================
// COMMON
// =============================================================================

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
	Dirty   bool   `json:"dirty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
