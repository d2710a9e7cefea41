package service

import (
	"context"
	"fmt"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/pkg/idgen"
	"golang.org/x/sync/errgroup"
)

// PackDealer fetches one booster per seat and turns the names into cards.
type PackDealer struct {
	source PackSource
	ids    idgen.Generator
}

func NewPackDealer(source PackSource, ids idgen.Generator) *PackDealer {
	return &PackDealer{source: source, ids: ids}
}

// Deal fetches all eight packs in parallel. The first failure cancels the
// remaining requests and is returned.
func (d *PackDealer) Deal(ctx context.Context, setCode string) ([][]domain.Card, error) {
	packs := make([][]domain.Card, domain.SeatCount)
	g, gctx := errgroup.WithContext(ctx)
	for seat := range packs {
		g.Go(func() error {
			names, err := d.source.FetchPack(gctx, setCode)
			if err != nil {
				return fmt.Errorf("fetch pack for seat %d: %w", seat, err)
			}
			packs[seat] = d.NewCards(names, setCode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return packs, nil
}

// NewCards creates un-enriched cards with fresh ids.
func (d *PackDealer) NewCards(names []string, setCode string) []domain.Card {
	cards := make([]domain.Card, len(names))
	for i, name := range names {
		cards[i] = domain.Card{
			ID:      name + "-" + d.ids.Generate(),
			Name:    name,
			SetCode: setCode,
		}
	}
	return cards
}
