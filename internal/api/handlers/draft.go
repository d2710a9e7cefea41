package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dom/lotus-draft/internal/api/middleware"
	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/websocket"
	"github.com/go-chi/chi/v5"
)

// DraftHandler exposes a session's draft over REST. Every call goes through
// the session's room, so REST and websocket clients see the same state.
type DraftHandler struct {
	hub *websocket.Hub
}

func NewDraftHandler(hub *websocket.Hub) *DraftHandler {
	return &DraftHandler{hub: hub}
}

type SetRequest struct {
	Set string `json:"set"`
}

type PickRequest struct {
	CardID string `json:"cardId"`
}

type BucketRequest struct {
	Bucket *int `json:"bucket"`
}

type ExportResponse struct {
	ArenaList string `json:"arenaList"`
}

func (h *DraftHandler) do(w http.ResponseWriter, r *http.Request, op string, cmd websocket.Command) (websocket.Result, bool) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return websocket.Result{}, false
	}

	res := h.hub.Do(r.Context(), sessionID, cmd)
	if res.Err != nil {
		writeError(w, op, res.Err)
		return res, false
	}
	return res, true
}

// decodeSet accepts an empty body as "use the default set".
func decodeSet(r *http.Request) (string, error) {
	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return req.Set, nil
}

func (h *DraftHandler) Enter(w http.ResponseWriter, r *http.Request) {
	set, err := decodeSet(r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if res, ok := h.do(w, r, "DraftHandler.Enter", websocket.Command{Type: websocket.CommandEnter, SetCode: set}); ok {
		writeJSON(w, http.StatusOK, res.View)
	}
}

func (h *DraftHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.do(w, r, "DraftHandler.Leave", websocket.Command{Type: websocket.CommandLeave}); ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *DraftHandler) Restart(w http.ResponseWriter, r *http.Request) {
	set, err := decodeSet(r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if res, ok := h.do(w, r, "DraftHandler.Restart", websocket.Command{Type: websocket.CommandRestart, SetCode: set}); ok {
		writeJSON(w, http.StatusOK, res.View)
	}
}

func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.do(w, r, "DraftHandler.Get", websocket.Command{Type: websocket.CommandSync}); ok {
		writeJSON(w, http.StatusOK, res.View)
	}
}

func (h *DraftHandler) Pick(w http.ResponseWriter, r *http.Request) {
	var req PickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CardID == "" {
		http.Error(w, "cardId is required", http.StatusBadRequest)
		return
	}
	if res, ok := h.do(w, r, "DraftHandler.Pick", websocket.Command{Type: websocket.CommandPick, CardID: req.CardID}); ok {
		writeJSON(w, http.StatusOK, res.View)
	}
}

func (h *DraftHandler) Continue(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.do(w, r, "DraftHandler.Continue", websocket.Command{Type: websocket.CommandContinue}); ok {
		writeJSON(w, http.StatusOK, res.View)
	}
}

func (h *DraftHandler) MoveCard(w http.ResponseWriter, r *http.Request) {
	var req BucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Bucket == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd := websocket.Command{
		Type:   websocket.CommandMoveCard,
		CardID: chi.URLParam(r, "cardId"),
		Bucket: *req.Bucket,
	}
	if res, ok := h.do(w, r, "DraftHandler.MoveCard", cmd); ok {
		writeJSON(w, http.StatusOK, res.View)
	}
}

func (h *DraftHandler) Curve(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.do(w, r, "DraftHandler.Curve", websocket.Command{Type: websocket.CommandSync}); ok {
		writeJSON(w, http.StatusOK, domain.ManaCurve(res.View.Picks))
	}
}

func (h *DraftHandler) Export(w http.ResponseWriter, r *http.Request) {
	res, ok := h.do(w, r, "DraftHandler.Export", websocket.Command{Type: websocket.CommandSync})
	if !ok {
		return
	}
	list := domain.FormatArenaList(res.View.Picks)
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, ExportResponse{ArenaList: list})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(list))
}

func (h *DraftHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.do(w, r, "DraftHandler.Predictions", websocket.Command{Type: websocket.CommandPredictions}); ok {
		writeJSON(w, http.StatusOK, res.Predictions)
	}
}
