package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/service"
)

type DecklistHandler struct {
	enricher *service.Enricher
}

func NewDecklistHandler(enricher *service.Enricher) *DecklistHandler {
	return &DecklistHandler{enricher: enricher}
}

const maxDecklistBody = 64 << 10

type ParseDecklistRequest struct {
	List string `json:"list"`
}

type ParseDecklistResponse struct {
	Cards []domain.Card `json:"cards"`
}

// Parse turns an Arena deck list into enriched cards. Unrecognised lines are
// dropped.
func (h *DecklistHandler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDecklistBody)

	var req ParseDecklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cards, err := domain.ParseArenaList(req.List)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(cards) == 0 {
		writeJSON(w, http.StatusOK, ParseDecklistResponse{Cards: []domain.Card{}})
		return
	}

	// Each card carries its own set code, which takes precedence.
	cards = h.enricher.EnrichPack(r.Context(), cards, "")
	writeJSON(w, http.StatusOK, ParseDecklistResponse{Cards: cards})
}
