package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/repository"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/google/uuid"
)

// Draft is one session's draft at rest.
type Draft struct {
	SessionID uuid.UUID
	SetCode   string
	State     domain.DraftState
}

func (d *Draft) Phase() domain.Phase {
	return d.State.Phase()
}

// HumanPack is the pack currently in front of the human.
func (d *Draft) HumanPack() []domain.Card {
	return d.State.Human().CurrentPack
}

func (d *Draft) with(state domain.DraftState) *Draft {
	return &Draft{SessionID: d.SessionID, SetCode: d.SetCode, State: state}
}

type DraftDeps struct {
	Dealer     *PackDealer
	Enricher   *Enricher
	Bots       *BotPicker
	Store      *DraftStore
	Visits     repository.SessionMarkerRepository
	Predictor  Predictor
	DefaultSet string
}

// DraftService drives drafts through their phases. It holds no per-session
// state; callers serialize the operations of one session.
type DraftService struct {
	dealer     *PackDealer
	enricher   *Enricher
	bots       *BotPicker
	store      *DraftStore
	visits     repository.SessionMarkerRepository
	predictor  Predictor
	defaultSet string
}

func NewDraftService(deps DraftDeps) *DraftService {
	return &DraftService{
		dealer:     deps.Dealer,
		enricher:   deps.Enricher,
		bots:       deps.Bots,
		store:      deps.Store,
		visits:     deps.Visits,
		predictor:  deps.Predictor,
		defaultSet: deps.DefaultSet,
	}
}

func (s *DraftService) DefaultSet() string {
	return s.defaultSet
}

func (s *DraftService) setOrDefault(setCode string) string {
	if setCode == "" {
		return s.defaultSet
	}
	return setCode
}

// Start deals eight fresh packs and saves the new draft. Only the human's
// pack is enriched.
func (s *DraftService) Start(ctx context.Context, sessionID uuid.UUID, setCode string) (*Draft, error) {
	setCode = s.setOrDefault(setCode)

	packs, err := s.dealer.Deal(ctx, setCode)
	if err != nil {
		return nil, fmt.Errorf("start draft: %w", err)
	}
	packs[domain.HumanSeat] = s.enricher.EnrichPack(ctx, packs[domain.HumanSeat], setCode)

	state, err := domain.NewDraftState(packs)
	if err != nil {
		return nil, fmt.Errorf("start draft: %w", err)
	}

	d := &Draft{SessionID: sessionID, SetCode: setCode, State: state}
	s.persist(ctx, d)
	return d, nil
}

// Enter is called when the draft page opens. A session that already visited
// resumes its saved draft; a fresh navigation starts over. A restored draft
// waiting on its next booster retries the fetch. The visit marker expires
// VisitTTL after the session's last draft activity.
func (s *DraftService) Enter(ctx context.Context, sessionID uuid.UUID, setCode string) (*Draft, error) {
	visited, err := s.visits.IsVisited(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR [DraftService.Enter] visit check failed for session %s: %v", sessionID, err)
	}

	if visited {
		if d, ok := s.Restore(ctx, sessionID); ok {
			s.touchVisit(ctx, sessionID)
			if d.Phase() == domain.PhaseStartingBooster {
				return s.ContinueBooster(ctx, d)
			}
			return d, nil
		}
		return s.Start(ctx, sessionID, setCode)
	}

	s.touchVisit(ctx, sessionID)
	if err := s.store.Clear(ctx, sessionID); err != nil {
		log.Printf("ERROR [DraftService.Enter] clear failed for session %s: %v", sessionID, err)
	}
	return s.Start(ctx, sessionID, setCode)
}

// Restore loads the saved draft without starting a new one.
func (s *DraftService) Restore(ctx context.Context, sessionID uuid.UUID) (*Draft, bool) {
	snap, ok := s.store.Load(ctx, sessionID)
	if !ok {
		return nil, false
	}
	return &Draft{
		SessionID: sessionID,
		SetCode:   s.setOrDefault(snap.SetCode),
		State:     snap.State,
	}, true
}

// Leave forgets the visit so the next navigation starts a new draft.
func (s *DraftService) Leave(ctx context.Context, sessionID uuid.UUID) error {
	return s.visits.ClearVisited(ctx, sessionID)
}

// Restart drops the saved draft and starts a new one.
func (s *DraftService) Restart(ctx context.Context, sessionID uuid.UUID, setCode string) (*Draft, error) {
	if err := s.store.Clear(ctx, sessionID); err != nil {
		log.Printf("ERROR [DraftService.Restart] clear failed for session %s: %v", sessionID, err)
	}
	return s.Start(ctx, sessionID, setCode)
}

// PickPhaseError reports why a draft in phase cannot take a pick, or nil when
// it can.
func PickPhaseError(phase domain.Phase) error {
	switch phase {
	case domain.PhaseComplete:
		return domain.ErrDraftComplete
	case domain.PhaseStartingBooster:
		return domain.ErrBoosterPending
	}
	return nil
}

// ResolveRound confirms the human's pick, lets every bot pick from the packs
// as they were before the human picked, passes and saves.
//
// When the round empties the packs and boosters remain, the next booster is
// fetched right away. If that fetch fails the returned draft is the saved
// StartingBooster state together with the error, so the caller can keep it
// and retry with ContinueBooster.
func (s *DraftService) ResolveRound(ctx context.Context, d *Draft, cardID string) (*Draft, error) {
	if err := PickPhaseError(d.Phase()); err != nil {
		return nil, err
	}
	if domain.IndexOfCard(d.HumanPack(), cardID) < 0 {
		return nil, domain.ErrCardNotInPack
	}

	choices := s.bots.PickAll(ctx, d.State, d.SetCode)
	state, err := d.State.ResolveRound(cardID, choices)
	if err != nil {
		return nil, err
	}

	next := d.with(state)
	switch next.Phase() {
	case domain.PhaseAwaitingHumanPick:
		pack := s.enricher.EnrichPack(ctx, next.HumanPack(), next.SetCode)
		next = next.with(next.State.WithSeatPack(domain.HumanSeat, pack))
		s.persist(ctx, next)
		return next, nil
	case domain.PhaseStartingBooster:
		s.persist(ctx, next)
		return s.ContinueBooster(ctx, next)
	default:
		s.persist(ctx, next)
		return next, nil
	}
}

// ContinueBooster deals the next booster for a draft whose packs are empty.
func (s *DraftService) ContinueBooster(ctx context.Context, d *Draft) (*Draft, error) {
	if d.Phase() != domain.PhaseStartingBooster {
		if d.Phase() == domain.PhaseComplete {
			return nil, domain.ErrDraftComplete
		}
		return nil, domain.ErrBoosterInProgress
	}

	packs, err := s.dealer.Deal(ctx, d.SetCode)
	if err != nil {
		return d, fmt.Errorf("start booster %d: %w", d.State.Booster+1, err)
	}
	packs[domain.HumanSeat] = s.enricher.EnrichPack(ctx, packs[domain.HumanSeat], d.SetCode)

	state, err := d.State.StartBooster(packs)
	if err != nil {
		return d, err
	}
	next := d.with(state)
	s.persist(ctx, next)
	return next, nil
}

// MoveCard sets the curve column of one of the human's picks.
func (s *DraftService) MoveCard(ctx context.Context, d *Draft, cardID string, bucket int) (*Draft, error) {
	if bucket < 0 {
		return nil, fmt.Errorf("invalid bucket %d", bucket)
	}
	state, err := d.State.WithPickBucket(cardID, bucket)
	if err != nil {
		return nil, err
	}
	next := d.with(state)
	s.persist(ctx, next)
	return next, nil
}

// Predict asks the prediction service to rank the human's pack. Failures are
// returned to the caller.
func (s *DraftService) Predict(ctx context.Context, d *Draft) ([]upstream.Prediction, error) {
	if s.predictor == nil {
		return nil, errors.New("prediction service not configured")
	}
	pack := d.HumanPack()
	if len(pack) == 0 {
		return nil, domain.ErrBoosterPending
	}
	return s.predictor.Predict(ctx, upstream.PredictRequest{
		Pack: domain.CardNames(pack),
		Deck: domain.CardNames(d.State.Human().Picks),
		Set:  d.SetCode,
	})
}

// ExportList renders the human's pool in Arena import format.
func (s *DraftService) ExportList(d *Draft) string {
	return domain.FormatArenaList(d.State.Human().Picks)
}

func (s *DraftService) persist(ctx context.Context, d *Draft) {
	err := s.store.Save(ctx, d.SessionID, DraftSnapshot{
		State:       d.State,
		PickedCards: d.State.Human().Picks,
		SetCode:     d.SetCode,
	})
	if err != nil {
		log.Printf("ERROR [DraftService.persist] save skipped for session %s: %v", d.SessionID, err)
	}
	s.touchVisit(ctx, d.SessionID)
}

// touchVisit marks the session visited, pushing the marker's expiry forward.
func (s *DraftService) touchVisit(ctx context.Context, sessionID uuid.UUID) {
	if err := s.visits.MarkVisited(ctx, sessionID); err != nil {
		log.Printf("ERROR [DraftService.touchVisit] mark visited failed for session %s: %v", sessionID, err)
	}
}
