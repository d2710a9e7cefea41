package service

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/upstream"
)

// BotPicker chooses cards for the seven non-human seats.
type BotPicker struct {
	predictor Predictor
	timeout   time.Duration
	intn      func(n int) int
}

// NewBotPicker builds a picker. intn picks the fallback index and defaults to
// math/rand.
func NewBotPicker(predictor Predictor, timeout time.Duration, intn func(n int) int) *BotPicker {
	if intn == nil {
		intn = rand.IntN
	}
	return &BotPicker{predictor: predictor, timeout: timeout, intn: intn}
}

// Pick returns one card from a non-empty pack. It asks the prediction service
// first and falls back to a uniformly random card when the service fails or
// names a card that is not in the pack.
func (b *BotPicker) Pick(ctx context.Context, seat int, pack, picks []domain.Card, setCode string) domain.Card {
	if b.predictor != nil {
		if card, ok := b.predicted(ctx, seat, pack, picks, setCode); ok {
			return card
		}
	}
	return pack[b.intn(len(pack))]
}

func (b *BotPicker) predicted(ctx context.Context, seat int, pack, picks []domain.Card, setCode string) (domain.Card, bool) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	ranked, err := b.predictor.Predict(ctx, upstream.PredictRequest{
		Pack: domain.CardNames(pack),
		Deck: domain.CardNames(picks),
		Set:  setCode,
	})
	if err != nil {
		log.Printf("WARN [BotPicker.Pick] seat %d prediction failed, picking at random: %v", seat, err)
		return domain.Card{}, false
	}

	if len(ranked) == 0 {
		return domain.Card{}, false
	}
	idx := domain.IndexOfCardName(pack, ranked[0].CardName)
	if idx < 0 {
		log.Printf("WARN [BotPicker.Pick] seat %d predicted %q which is not in the pack", seat, ranked[0].CardName)
		return domain.Card{}, false
	}
	return pack[idx], true
}

// PickAll picks for every bot seat holding cards, all seats concurrently, and
// returns the chosen card id per seat.
func (b *BotPicker) PickAll(ctx context.Context, state domain.DraftState, setCode string) map[int]string {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		choices = make(map[int]string, domain.SeatCount-1)
	)
	for seat, p := range state.Players {
		if seat == domain.HumanSeat || len(p.CurrentPack) == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			card := b.Pick(ctx, seat, p.CurrentPack, p.Picks, setCode)
			mu.Lock()
			choices[seat] = card.ID
			mu.Unlock()
		}()
	}
	wg.Wait()
	return choices
}
