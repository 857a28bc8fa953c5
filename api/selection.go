package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/warp/pos-tracker/tracker"
)

// sessionHeader keys the per-client selection. Clients without it share
// the default selection.
const (
	sessionHeader  = "X-Session-ID"
	defaultSession = "default"
)

// emptySelectionMessage is returned when a bulk update has nothing to do.
const emptySelectionMessage = "Selection cleared. Nothing to update."

// =============================================================================
// SELECTION REGISTRY
// =============================================================================

// selectionRegistry holds one SelectionSet per client session. Sets live
// in memory only and are never pruned when records are filtered away.
type selectionRegistry struct {
	mu   sync.Mutex
	sets map[string]*tracker.SelectionSet
}

func newSelectionRegistry() *selectionRegistry {
	return &selectionRegistry{sets: make(map[string]*tracker.SelectionSet)}
}

// update runs fn on the session's set under the registry lock and
// returns the resulting ids.
func (sr *selectionRegistry) update(session string, fn func(*tracker.SelectionSet)) []int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	s, ok := sr.sets[session]
	if !ok {
		s = tracker.NewSelectionSet()
		sr.sets[session] = s
	}
	fn(s)
	return s.IDs()
}

// snapshot returns an independent copy of the session's set.
func (sr *selectionRegistry) snapshot(session string) *tracker.SelectionSet {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if s, ok := sr.sets[session]; ok {
		return s.Clone()
	}
	return tracker.NewSelectionSet()
}

func sessionID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(sessionHeader)); v != "" {
		return v
	}
	return defaultSession
}

// =============================================================================
// SELECTION HANDLERS
// =============================================================================

// GetSelection returns the caller's selected ids.
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	ids := h.selections.snapshot(sessionID(r)).IDs()
	writeJSON(w, http.StatusOK, SelectionResponse{IDs: ids, Count: len(ids)})
}

// UpdateSelection applies one selection action. For select_visible and
// clear_visible without explicit ids, the visible set is computed from
// the request's filter query parameters, exactly as ListRecords would.
func (h *Handler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	ids := req.IDs
	if (action == "select_visible" || action == "clear_visible") && len(ids) == 0 {
		fq, err := parseFilter(r.URL.Query())
		if err != nil {
			writeDomainError(w, "Invalid filter", err)
			return
		}
		visible, _ := fq.apply(h.Records.Records())
		ids = tracker.IDs(visible)
	}

	var fn func(*tracker.SelectionSet)
	switch action {
	case "add":
		fn = func(s *tracker.SelectionSet) { s.Add(ids...) }
	case "remove":
		fn = func(s *tracker.SelectionSet) { s.Remove(ids...) }
	case "toggle":
		fn = func(s *tracker.SelectionSet) {
			for _, id := range ids {
				s.Toggle(id)
			}
		}
	case "clear":
		fn = func(s *tracker.SelectionSet) { s.Clear() }
	case "select_visible":
		fn = func(s *tracker.SelectionSet) { s.SelectAllVisible(ids) }
	case "clear_visible":
		fn = func(s *tracker.SelectionSet) { s.ClearVisible(ids) }
	default:
		writeError(w, http.StatusBadRequest, "Unknown selection action", errors.New(req.Action))
		return
	}

	selected := h.selections.update(sessionID(r), fn)
	writeJSON(w, http.StatusOK, SelectionResponse{IDs: selected, Count: len(selected)})
}

// =============================================================================
// BULK UPDATE
// =============================================================================

// BulkUpdate applies a patch to the caller's selection (or to explicit
// ids). On success the applied ids leave the session selection, which
// clears it unless the client selected more in the meantime.
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session := sessionID(r)
	sel := tracker.NewSelectionSet(req.IDs...)
	fromSession := len(req.IDs) == 0
	if fromSession {
		sel = h.selections.snapshot(session)
	}

	changed, err := h.Bulk.Apply(r.Context(), sel, req.Patch)
	switch {
	case errors.Is(err, tracker.ErrEmptySelection):
		writeJSON(w, http.StatusOK, BulkResponse{Changed: 0, Message: emptySelectionMessage})
		return
	case err != nil && !tracker.IsPersistenceWarning(err):
		writeDomainError(w, "Bulk update failed", err)
		return
	}

	bulkUpdatesTotal.Inc()
	bulkRecordsChangedTotal.Add(float64(changed))
	if fromSession {
		applied := sel.IDs()
		h.selections.update(session, func(s *tracker.SelectionSet) { s.Remove(applied...) })
	}
	h.logger.Info("bulk update applied", slog.Int("selected", sel.Len()), slog.Int("changed", changed))
	h.logActivity(r.Context(), tracker.ActivityBulk, actor(r), "", changed, err)

	writeJSON(w, http.StatusOK, BulkResponse{Changed: changed, Warning: warningText(err)})
}
