package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dom/lotus-draft/internal/config"
	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/dom/lotus-draft/internal/repository"
	"github.com/dom/lotus-draft/internal/repository/memory"
	"github.com/dom/lotus-draft/internal/service"
	"github.com/dom/lotus-draft/internal/upstream"
)

// fakePacks deals packs of distinct names. Each call gets a new prefix.
type fakePacks struct {
	size  int
	calls atomic.Int64
	fail  atomic.Bool
}

func (f *fakePacks) FetchPack(_ context.Context, setCode string) ([]string, error) {
	n := f.calls.Add(1)
	if f.fail.Load() {
		return nil, domain.NewStatusError(upstream.ServiceBooster, 503)
	}
	names := make([]string, f.size)
	for i := range names {
		names[i] = fmt.Sprintf("%s card %d-%d", setCode, n, i)
	}
	return names, nil
}

type fakeCards struct {
	mu      sync.Mutex
	calls   map[string]int
	missing map[string]bool
	cards   map[string]*upstream.ScryfallCard
}

func newFakeCards() *fakeCards {
	return &fakeCards{
		calls:   map[string]int{},
		missing: map[string]bool{},
		cards:   map[string]*upstream.ScryfallCard{},
	}
}

func (f *fakeCards) Card(_ context.Context, name, set string) (*upstream.ScryfallCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.missing[name] {
		return nil, domain.NewStatusError(upstream.ServiceScryfall, 404)
	}
	if c, ok := f.cards[name]; ok {
		return c, nil
	}
	return &upstream.ScryfallCard{
		Name:      name,
		CMC:       2.5,
		Set:       set,
		ImageURIs: map[string]string{"png": "https://img.example/" + name + ".png"},
	}, nil
}

func (f *fakeCards) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

type fakePredictor struct {
	fn    func(in upstream.PredictRequest) ([]upstream.Prediction, error)
	calls atomic.Int64
}

func (f *fakePredictor) Predict(ctx context.Context, in upstream.PredictRequest) ([]upstream.Prediction, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fn(in)
}

// firstCardPredictor always names the first card of the pack.
func firstCardPredictor() *fakePredictor {
	return &fakePredictor{fn: func(in upstream.PredictRequest) ([]upstream.Prediction, error) {
		return []upstream.Prediction{{CardName: in.Pack[0], Probability: 0.9}}, nil
	}}
}

type harness struct {
	packs     *fakePacks
	cards     *fakeCards
	predictor *fakePredictor
	repos     *repository.Repositories
	clock     *clock.Fake
	store     *service.DraftStore
	drafts    *service.DraftService
}

func newHarness(packSize int) *harness {
	clk := clock.NewFake(time.Unix(0, 0))
	h := &harness{
		packs:     &fakePacks{size: packSize},
		cards:     newFakeCards(),
		predictor: firstCardPredictor(),
		repos:     memory.NewRepositories(time.Hour, clk),
		clock:     clk,
	}
	cfg := &config.Config{
		SessionSecret:  "test-secret",
		SessionTTL:     time.Hour,
		BotPickTimeout: time.Second,
		ImageVersion:   "png",
		DefaultSet:     "mh3",
	}
	svcs := service.NewServices(h.repos, service.Clients{
		Packs:     h.packs,
		Cards:     h.cards,
		Predictor: h.predictor,
	}, cfg)
	h.store = svcs.Store
	h.drafts = svcs.Draft
	return h
}
