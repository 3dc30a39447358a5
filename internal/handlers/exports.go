package handlers

import (
	"net/http"
	"strconv"

	"github.com/edu-moreno89/erado-export/internal/db"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListExports returns journal entries, newest first. q runs a full text
// search, session restricts to one session.
func (h *Handlers) ListExports(w http.ResponseWriter, r *http.Request) {
	if !h.requireJournal(w) {
		return
	}

	query := r.URL.Query()
	limit := parseLimit(query.Get("limit"))

	var (
		exports []*db.Export
		err     error
	)
	switch {
	case query.Get("session") != "":
		exports, err = h.db.ListSessionExports(query.Get("session"), limit)
	case query.Get("q") != "":
		exports, err = h.db.SearchExports(query.Get("q"), limit)
	default:
		offset, _ := strconv.Atoi(query.Get("offset"))
		if offset < 0 {
			offset = 0
		}
		exports, err = h.db.ListExports(limit, offset)
	}
	if err != nil {
		h.logger.Error("Failed to list exports", zap.Error(err))
		http.Error(w, "Failed to load exports", http.StatusInternalServerError)
		return
	}
	if exports == nil {
		exports = []*db.Export{}
	}

	h.writeJSON(w, http.StatusOK, exports)
}

// GetExport returns one journal entry
func (h *Handlers) GetExport(w http.ResponseWriter, r *http.Request) {
	if !h.requireJournal(w) {
		return
	}

	e, err := h.db.GetExport(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("Failed to load export", zap.Error(err))
		http.Error(w, "Failed to load export", http.StatusInternalServerError)
		return
	}
	if e == nil {
		http.Error(w, "Export not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, e)
}

// ExportStats returns success and failure counts
func (h *Handlers) ExportStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireJournal(w) {
		return
	}

	succeeded, err := h.db.CountExports(true)
	if err != nil {
		h.logger.Error("Failed to count exports", zap.Error(err))
		http.Error(w, "Failed to count exports", http.StatusInternalServerError)
		return
	}

	failed, err := h.db.CountExports(false)
	if err != nil {
		h.logger.Error("Failed to count exports", zap.Error(err))
		http.Error(w, "Failed to count exports", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{
		"succeeded": succeeded,
		"failed":    failed,
	})
}

func (h *Handlers) requireJournal(w http.ResponseWriter) bool {
	if h.db == nil {
		http.Error(w, "Export history is disabled", http.StatusNotFound)
		return false
	}
	return true
}

func parseLimit(raw string) int {
	limit := defaultListLimit
	if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
