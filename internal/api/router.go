package api

import (
	"net/http"

	"github.com/dom/lotus-draft/internal/api/handlers"
	"github.com/dom/lotus-draft/internal/api/middleware"
	"github.com/dom/lotus-draft/internal/config"
	"github.com/dom/lotus-draft/internal/service"
	"github.com/dom/lotus-draft/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services, hub *websocket.Hub, upstreams handlers.Upstreams, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	proxyHandler := handlers.NewProxyHandler(upstreams, cfg.ImageVersion)
	sessionHandler := handlers.NewSessionHandler(services.Session)
	draftHandler := handlers.NewDraftHandler(hub)
	settingsHandler := handlers.NewSettingsHandler(services.Store, hub)
	decklistHandler := handlers.NewDecklistHandler(services.Enricher)
	wsHandler := handlers.NewWebSocketHandler(hub, cfg.AllowedOrigins)

	r.Route("/api", func(r chi.Router) {
		// Upstream proxies need no session
		r.Get("/sets", proxyHandler.ListSets)
		r.Get("/sets/{code}/icon", proxyHandler.SetIcon)
		r.Get("/scryfall", proxyHandler.Card)
		r.Get("/card-image", proxyHandler.CardImage)

		// Session-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(services.Session, !cfg.IsDevelopment()))

			r.Get("/session", sessionHandler.Get)

			r.Route("/draft", func(r chi.Router) {
				r.Get("/", draftHandler.Get)
				r.Post("/enter", draftHandler.Enter)
				r.Post("/leave", draftHandler.Leave)
				r.Post("/restart", draftHandler.Restart)
				r.Post("/pick", draftHandler.Pick)
				r.Post("/continue", draftHandler.Continue)
				r.Put("/picks/{cardId}/bucket", draftHandler.MoveCard)
				r.Get("/curve", draftHandler.Curve)
				r.Get("/export", draftHandler.Export)
				r.Get("/predictions", draftHandler.Predictions)
			})

			r.Get("/settings", settingsHandler.Get)
			r.Put("/settings", settingsHandler.Update)

			r.Post("/decklist/parse", decklistHandler.Parse)

			r.Get("/ws", wsHandler.Handle)
		})
	})

	return r
}
