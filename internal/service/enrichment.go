package service

import (
	"context"
	"log"
	"math"
	"net/url"

	"github.com/dom/lotus-draft/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Enricher fills in image and mana value for cards that only carry a name.
type Enricher struct {
	cards        CardLookup
	imageVersion string
}

func NewEnricher(cards CardLookup, imageVersion string) *Enricher {
	if imageVersion == "" {
		imageVersion = "png"
	}
	return &Enricher{cards: cards, imageVersion: imageVersion}
}

// Enrich looks the card up by name and the given set. A failed lookup never
// fails the caller: the card comes back with the placeholder image and mana
// value 0, still marked un-enriched.
func (e *Enricher) Enrich(ctx context.Context, card domain.Card, setCode string) domain.Card {
	if card.Enriched {
		return card
	}
	if card.SetCode != "" {
		setCode = card.SetCode
	}

	info, err := e.cards.Card(ctx, card.Name, setCode)
	if err != nil {
		log.Printf("WARN [Enricher.Enrich] lookup failed for %q (%s): %v", card.Name, setCode, err)
		card.ImageURL = domain.PlaceholderImageURL
		card.CMC = 0
		return card
	}

	card.ImageURL = info.ImageURL(e.imageVersion)
	if card.ImageURL == "" {
		card.ImageURL = ImageProxyURL(card.Name, e.imageVersion)
	}
	card.CMC = int(math.Max(0, math.Floor(info.CMC)))
	if card.SetCode == "" {
		card.SetCode = info.Set
	}
	if card.CollectorNumber == "" {
		card.CollectorNumber = info.CollectorNumber
	}
	card.Enriched = true
	return card
}

// EnrichPack enriches every card concurrently. Order and ids are preserved.
func (e *Enricher) EnrichPack(ctx context.Context, cards []domain.Card, setCode string) []domain.Card {
	out := make([]domain.Card, len(cards))
	var g errgroup.Group
	for i, c := range cards {
		g.Go(func() error {
			out[i] = e.Enrich(ctx, c, setCode)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ImageProxyURL points at this server's image endpoint for the card.
func ImageProxyURL(name, version string) string {
	q := url.Values{}
	q.Set("cardName", name)
	q.Set("version", version)
	return "/api/card-image?" + q.Encode()
}
