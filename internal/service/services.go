package service

import (
	"context"

	"github.com/dom/lotus-draft/internal/config"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/dom/lotus-draft/internal/pkg/idgen"
	"github.com/dom/lotus-draft/internal/repository"
	"github.com/dom/lotus-draft/internal/upstream"
)

// PackSource returns the card names of one fresh booster.
type PackSource interface {
	FetchPack(ctx context.Context, setCode string) ([]string, error)
}

// CardLookup resolves a card name to its card database entry.
type CardLookup interface {
	Card(ctx context.Context, name, set string) (*upstream.ScryfallCard, error)
}

// Predictor ranks the cards of a pack for a given pool, best first.
type Predictor interface {
	Predict(ctx context.Context, in upstream.PredictRequest) ([]upstream.Prediction, error)
}

type Clients struct {
	Packs     PackSource
	Cards     CardLookup
	Predictor Predictor
}

type Services struct {
	Session  *SessionService
	Enricher *Enricher
	Store    *DraftStore
	Draft    *DraftService
}

func NewServices(repos *repository.Repositories, clients Clients, cfg *config.Config) *Services {
	enricher := NewEnricher(clients.Cards, cfg.ImageVersion)
	store := NewDraftStore(repos.Values)
	dealer := NewPackDealer(clients.Packs, idgen.NewCardGenerator())
	bots := NewBotPicker(clients.Predictor, cfg.BotPickTimeout, nil)

	return &Services{
		Session:  NewSessionService(cfg.SessionSecret, cfg.SessionTTL, clock.New()),
		Enricher: enricher,
		Store:    store,
		Draft: NewDraftService(DraftDeps{
			Dealer:     dealer,
			Enricher:   enricher,
			Bots:       bots,
			Store:      store,
			Visits:     repos.Visits,
			Predictor:  clients.Predictor,
			DefaultSet: cfg.DefaultSet,
		}),
	}
}
