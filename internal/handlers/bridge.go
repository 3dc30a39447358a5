package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/edu-moreno89/erado-export/internal/bridge"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Attachments travel base64 encoded inside bridge messages
const maxBridgeBody = 96 << 20

// Bridge handles one bridge message. Replies are always JSON with a success
// flag; only unreadable bodies get a non-200 status.
func (h *Handlers) Bridge(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBridgeBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, bridge.Failure(errors.New("request too large")))
			return
		}
		h.writeJSON(w, http.StatusBadRequest, bridge.Failure(err))
		return
	}

	resp := h.bridge.SendRaw(r.Context(), body)
	h.writeJSON(w, http.StatusOK, resp)
}

// ResetSession drops a session's folder and guards, as a page reload would
func (h *Handlers) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.bridge.Sessions.Reset(id) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	h.logger.Info("Session reset", zap.String("session", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
