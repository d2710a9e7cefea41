package domain

const (
	SeatCount    = 8
	HumanSeat    = 0
	BoosterCount = 3
)

type Direction string

const (
	DirectionClockwise        Direction = "clockwise"
	DirectionCounterClockwise Direction = "counterclockwise"
)

// DirectionForBooster returns the passing direction for a 1-based booster
// number. Odd boosters pass clockwise.
func DirectionForBooster(booster int) Direction {
	if booster%2 == 1 {
		return DirectionClockwise
	}
	return DirectionCounterClockwise
}

type Phase string

const (
	PhaseInitializing      Phase = "initializing"
	PhaseAwaitingHumanPick Phase = "awaiting_human_pick"
	PhaseResolvingRound    Phase = "resolving_round"
	PhaseStartingBooster   Phase = "starting_booster"
	PhaseComplete          Phase = "complete"
)

type Player struct {
	ID          int    `json:"id"`
	IsHuman     bool   `json:"isHuman"`
	Picks       []Card `json:"picks"`
	CurrentPack []Card `json:"currentPack"`
}

// DraftState is the aggregate root of a draft. Transition methods never
// modify the receiver; they return the next state.
type DraftState struct {
	Booster   int       `json:"currentBooster"`
	Pick      int       `json:"currentPick"`
	Direction Direction `json:"direction"`
	Players   []Player  `json:"players"`
}

func validatePacks(packs [][]Card) error {
	if len(packs) != SeatCount {
		return ErrInvalidPacks
	}
	size := len(packs[0])
	if size == 0 {
		return ErrInvalidPacks
	}
	for _, p := range packs[1:] {
		if len(p) != size {
			return ErrInvalidPacks
		}
	}
	return nil
}

// NewDraftState seats eight players with the given packs at booster 1, pick 1.
func NewDraftState(packs [][]Card) (DraftState, error) {
	if err := validatePacks(packs); err != nil {
		return DraftState{}, err
	}

	players := make([]Player, SeatCount)
	for i := range players {
		players[i] = Player{
			ID:          i,
			IsHuman:     i == HumanSeat,
			Picks:       []Card{},
			CurrentPack: cloneCards(packs[i]),
		}
	}

	return DraftState{
		Booster:   1,
		Pick:      1,
		Direction: DirectionForBooster(1),
		Players:   players,
	}, nil
}

func (s DraftState) Clone() DraftState {
	out := s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = Player{
			ID:          p.ID,
			IsHuman:     p.IsHuman,
			Picks:       cloneCards(p.Picks),
			CurrentPack: cloneCards(p.CurrentPack),
		}
	}
	return out
}

func (s DraftState) Human() Player {
	return s.Players[HumanSeat]
}

func (s DraftState) AllPacksEmpty() bool {
	for _, p := range s.Players {
		if len(p.CurrentPack) > 0 {
			return false
		}
	}
	return true
}

func (s DraftState) IsComplete() bool {
	return s.Booster >= BoosterCount && s.AllPacksEmpty()
}

// Phase reports the resting phase of the state. Initializing and
// ResolvingRound only exist while the engine is working and are never stored.
func (s DraftState) Phase() Phase {
	switch {
	case s.IsComplete():
		return PhaseComplete
	case s.AllPacksEmpty():
		return PhaseStartingBooster
	default:
		return PhaseAwaitingHumanPick
	}
}

// Validate checks the structural invariants of a state read back from storage.
func (s DraftState) Validate() error {
	if len(s.Players) != SeatCount {
		return ErrInvalidPacks
	}
	if s.Booster < 1 || s.Booster > BoosterCount || s.Pick < 1 {
		return ErrInvalidPacks
	}
	if s.Direction != DirectionClockwise && s.Direction != DirectionCounterClockwise {
		return ErrInvalidPacks
	}
	return nil
}

// ResolveRound applies one pick-and-pass cycle: the human takes humanCardID,
// each bot seat with cards takes the card named in botChoices (keyed by seat,
// valued by card id), then the remaining packs move one seat along the
// booster's direction. Pick advances unless every pack is now empty.
func (s DraftState) ResolveRound(humanCardID string, botChoices map[int]string) (DraftState, error) {
	if s.AllPacksEmpty() {
		if s.IsComplete() {
			return s, ErrDraftComplete
		}
		return s, ErrBoosterPending
	}

	next := s.Clone()

	human := &next.Players[HumanSeat]
	idx := IndexOfCard(human.CurrentPack, humanCardID)
	if idx < 0 {
		return s, ErrCardNotInPack
	}
	human.Picks = append(human.Picks, human.CurrentPack[idx])
	human.CurrentPack = removeAt(human.CurrentPack, idx)

	for seat := range next.Players {
		if seat == HumanSeat {
			continue
		}
		p := &next.Players[seat]
		if len(p.CurrentPack) == 0 {
			continue
		}
		idx := IndexOfCard(p.CurrentPack, botChoices[seat])
		if idx < 0 {
			return s, ErrCardNotInPack
		}
		p.Picks = append(p.Picks, p.CurrentPack[idx])
		p.CurrentPack = removeAt(p.CurrentPack, idx)
	}

	next = next.PassPacks()
	if !next.AllPacksEmpty() {
		next.Pick++
	}
	return next, nil
}

// PassPacks hands every seat's pack to its neighbour in the current direction.
func (s DraftState) PassPacks() DraftState {
	next := s.Clone()
	n := len(next.Players)
	packs := make([][]Card, n)
	for i, p := range next.Players {
		var to int
		if next.Direction == DirectionClockwise {
			to = (i + 1) % n
		} else {
			to = (i - 1 + n) % n
		}
		packs[to] = p.CurrentPack
	}
	for i := range next.Players {
		next.Players[i].CurrentPack = packs[i]
	}
	return next
}

// StartBooster deals the next booster once every pack is empty.
func (s DraftState) StartBooster(packs [][]Card) (DraftState, error) {
	if !s.AllPacksEmpty() {
		return s, ErrBoosterInProgress
	}
	if s.Booster >= BoosterCount {
		return s, ErrDraftComplete
	}
	if err := validatePacks(packs); err != nil {
		return s, err
	}

	next := s.Clone()
	next.Booster++
	next.Pick = 1
	next.Direction = DirectionForBooster(next.Booster)
	for i := range next.Players {
		next.Players[i].CurrentPack = cloneCards(packs[i])
	}
	return next, nil
}

// WithSeatPack replaces one seat's pack, typically with its enriched version.
func (s DraftState) WithSeatPack(seat int, pack []Card) DraftState {
	next := s.Clone()
	next.Players[seat].CurrentPack = cloneCards(pack)
	return next
}

// WithPickBucket moves one of the human's picks to another curve column.
func (s DraftState) WithPickBucket(cardID string, bucket int) (DraftState, error) {
	next := s.Clone()
	human := &next.Players[HumanSeat]
	idx := IndexOfCard(human.Picks, cardID)
	if idx < 0 {
		return s, ErrCardNotPicked
	}
	human.Picks[idx] = human.Picks[idx].WithManaBucket(bucket)
	return next, nil
}
