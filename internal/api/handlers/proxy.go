package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/go-chi/chi/v5"
)

const imageCacheControl = "public, max-age=86400"

// SetCatalog is the booster service's set listing.
type SetCatalog interface {
	ListSets(ctx context.Context) (json.RawMessage, error)
	SetIcon(ctx context.Context, code string) (*upstream.Binary, error)
}

// CardSource is the shared, rate-gated card database client.
type CardSource interface {
	LookupCard(ctx context.Context, name, set string) (json.RawMessage, error)
	CardImage(ctx context.Context, name, version string) (*upstream.Binary, error)
}

type Upstreams struct {
	Sets  SetCatalog
	Cards CardSource
}

// ProxyHandler relays the external services to the browser.
type ProxyHandler struct {
	sets         SetCatalog
	cards        CardSource
	imageVersion string
}

func NewProxyHandler(upstreams Upstreams, imageVersion string) *ProxyHandler {
	if imageVersion == "" {
		imageVersion = "png"
	}
	return &ProxyHandler{sets: upstreams.Sets, cards: upstreams.Cards, imageVersion: imageVersion}
}

// upstreamStatus returns the status an upstream answered with, if any.
func upstreamStatus(err error) (int, bool) {
	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) && upErr.StatusCode != 0 {
		return upErr.StatusCode, true
	}
	return 0, false
}

func (h *ProxyHandler) ListSets(w http.ResponseWriter, r *http.Request) {
	body, err := h.sets.ListSets(r.Context())
	if err != nil {
		log.Printf("ERROR [proxy.ListSets] %v", err)
		if status, ok := upstreamStatus(err); ok {
			writeJSONError(w, status, fmt.Sprintf("Failed to fetch sets: %d", status))
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "Failed to fetch sets")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (h *ProxyHandler) SetIcon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	icon, err := h.sets.SetIcon(r.Context(), code)
	if err != nil {
		log.Printf("ERROR [proxy.SetIcon] %s: %v", code, err)
		if status, ok := upstreamStatus(err); ok {
			writeJSONError(w, status, fmt.Sprintf("Failed to fetch icon: %d", status))
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "Failed to fetch icon")
		return
	}

	writeBinary(w, icon)
}

func (h *ProxyHandler) Card(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("cardName")
	set := r.URL.Query().Get("set")
	if name == "" || set == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing cardName or set parameter")
		return
	}

	body, err := h.cards.LookupCard(r.Context(), name, set)
	if err != nil {
		if status, ok := upstreamStatus(err); ok {
			writeJSONError(w, status, fmt.Sprintf("Scryfall API error: %d", status))
			return
		}
		log.Printf("ERROR [proxy.Card] %q: %v", name, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to fetch card data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (h *ProxyHandler) CardImage(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("cardName")
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing cardName parameter")
		return
	}
	version := r.URL.Query().Get("version")
	if version == "" {
		version = h.imageVersion
	}

	img, err := h.cards.CardImage(r.Context(), name, version)
	if err != nil {
		if status, ok := upstreamStatus(err); ok {
			writeJSONError(w, status, fmt.Sprintf("Scryfall API error: %d", status))
			return
		}
		log.Printf("ERROR [proxy.CardImage] %q: %v", name, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to fetch card image")
		return
	}

	writeBinary(w, img)
}

func writeBinary(w http.ResponseWriter, b *upstream.Binary) {
	w.Header().Set("Content-Type", b.ContentType)
	w.Header().Set("Cache-Control", imageCacheControl)
	w.Write(b.Body)
}
