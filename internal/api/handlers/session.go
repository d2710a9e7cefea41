package handlers

import (
	"net/http"
	"time"

	"github.com/dom/lotus-draft/internal/api/middleware"
	"github.com/dom/lotus-draft/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type SessionResponse struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Get reports the caller's session. The session middleware has already
// issued one if the request carried no valid token.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		SessionID: sessionID.String(),
		Token:     middleware.GetSessionToken(r.Context()),
		ExpiresAt: time.Now().Add(h.sessions.TTL()).UTC(),
	})
}
