package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/websocket"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps engine and upstream errors onto HTTP statuses.
func statusFor(err error) int {
	var upErr *domain.UpstreamError
	switch {
	case errors.As(err, &upErr):
		if upErr.StatusCode != 0 {
			return upErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrCardNotInPack),
		errors.Is(err, domain.ErrCardNotPicked),
		errors.Is(err, websocket.ErrNoCardSelected),
		errors.Is(err, websocket.ErrInvalidBucket):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDraftComplete),
		errors.Is(err, domain.ErrBoosterPending),
		errors.Is(err, domain.ErrBoosterInProgress),
		errors.Is(err, websocket.ErrPredictionsDisabled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoActiveDraft):
		return http.StatusNotFound
	case errors.Is(err, websocket.ErrRoomClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Printf("ERROR [%s] %v", op, err)
	}
	http.Error(w, err.Error(), status)
}
