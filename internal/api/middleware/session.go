package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/dom/lotus-draft/internal/service"
	"github.com/google/uuid"
)

type contextKey string

const (
	SessionIDKey    contextKey = "sessionID"
	SessionTokenKey contextKey = "sessionToken"

	SessionCookie      = "lotus_session"
	SessionTokenHeader = "X-Session-Token"
)

// Session attaches the browser session to the request. The token is read
// from the Authorization header, the session cookie or a token query
// parameter (websockets). A missing or invalid token gets a new session.
func Session(sessions *service.SessionService, secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)

			sessionID, err := sessions.Validate(token)
			if err != nil {
				if token != "" {
					log.Printf("ERROR [middleware.Session] token validation failed, issuing new session: %v", err)
				}
				sessionID, token, err = sessions.Issue()
				if err != nil {
					log.Printf("ERROR [middleware.Session] failed to issue session: %v", err)
					http.Error(w, "Failed to create session", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    token,
					Path:     "/",
					MaxAge:   int(sessions.TTL().Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
				w.Header().Set(SessionTokenHeader, token)
			}

			ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
			ctx = context.WithValue(ctx, SessionTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

func GetSessionID(ctx context.Context) (uuid.UUID, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(uuid.UUID)
	return sessionID, ok
}

func GetSessionToken(ctx context.Context) string {
	token, _ := ctx.Value(SessionTokenKey).(string)
	return token
}
