package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/dom/lotus-draft/internal/api/middleware"
	"github.com/dom/lotus-draft/internal/service"
	"github.com/dom/lotus-draft/internal/websocket"
)

type SettingsHandler struct {
	store *service.DraftStore
	hub   *websocket.Hub
}

func NewSettingsHandler(store *service.DraftStore, hub *websocket.Hub) *SettingsHandler {
	return &SettingsHandler{store: store, hub: hub}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.store.LoadSettings(r.Context(), sessionID))
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	settings := h.store.LoadSettings(r.Context(), sessionID)
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := h.store.SaveSettings(r.Context(), sessionID, settings)
	if err != nil {
		log.Printf("ERROR [SettingsHandler.Update] session %s: %v", sessionID, err)
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}

	// The room keeps its own copy for predictions and views.
	res := h.hub.Do(r.Context(), sessionID, websocket.Command{Type: websocket.CommandSettings, Settings: saved})
	if res.Err != nil {
		log.Printf("WARN [SettingsHandler.Update] session %s: room not updated: %v", sessionID, res.Err)
	}

	writeJSON(w, http.StatusOK, saved)
}
