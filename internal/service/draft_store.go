package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/repository"
	"github.com/google/uuid"
)

const (
	KeyDraftState  = "draft_state"
	KeyPickedCards = "picked_cards"
	KeyCurrentSet  = "current_set"
	KeySettings    = "settings"
)

// DraftSnapshot is everything needed to resume a draft after a reload.
type DraftSnapshot struct {
	State       domain.DraftState
	PickedCards []domain.Card
	SetCode     string
}

// DraftStore persists drafts and settings as independent per-session values.
type DraftStore struct {
	values repository.KeyValueRepository
}

func NewDraftStore(values repository.KeyValueRepository) *DraftStore {
	return &DraftStore{values: values}
}

// Save overwrites all three draft keys.
func (s *DraftStore) Save(ctx context.Context, sessionID uuid.UUID, snap DraftSnapshot) error {
	picked := snap.PickedCards
	if picked == nil {
		picked = snap.State.Human().Picks
	}

	entries := []struct {
		key   string
		value any
	}{
		{KeyDraftState, snap.State},
		{KeyPickedCards, picked},
		{KeyCurrentSet, snap.SetCode},
	}
	for _, e := range entries {
		data, err := json.Marshal(e.value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.key, err)
		}
		if err := s.values.Set(ctx, sessionID, e.key, data); err != nil {
			return fmt.Errorf("save %s: %w", e.key, err)
		}
	}
	return nil
}

// Load reads a saved draft. A missing key, malformed data or unavailable
// storage all report false; only the latter two are logged.
func (s *DraftStore) Load(ctx context.Context, sessionID uuid.UUID) (*DraftSnapshot, bool) {
	var snap DraftSnapshot
	targets := []struct {
		key    string
		target any
	}{
		{KeyDraftState, &snap.State},
		{KeyPickedCards, &snap.PickedCards},
		{KeyCurrentSet, &snap.SetCode},
	}
	for _, t := range targets {
		if !s.read(ctx, sessionID, t.key, t.target) {
			return nil, false
		}
	}

	if err := snap.State.Validate(); err != nil {
		log.Printf("WARN [DraftStore.Load] discarding invalid draft for session %s: %v", sessionID, err)
		return nil, false
	}
	if snap.PickedCards == nil {
		snap.PickedCards = []domain.Card{}
	}
	snap.State.Players[domain.HumanSeat].Picks = snap.PickedCards
	return &snap, true
}

func (s *DraftStore) read(ctx context.Context, sessionID uuid.UUID, key string, target any) bool {
	data, err := s.values.Get(ctx, sessionID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if err != nil {
		log.Printf("ERROR [DraftStore.Load] read %s for session %s: %v", key, sessionID, err)
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		log.Printf("WARN [DraftStore.Load] malformed %s for session %s: %v", key, sessionID, err)
		return false
	}
	return true
}

// Clear removes the saved draft. Settings are kept.
func (s *DraftStore) Clear(ctx context.Context, sessionID uuid.UUID) error {
	return s.values.Delete(ctx, sessionID, KeyDraftState, KeyPickedCards, KeyCurrentSet)
}

// LoadSettings returns the saved settings or the defaults.
func (s *DraftStore) LoadSettings(ctx context.Context, sessionID uuid.UUID) domain.Settings {
	settings := domain.DefaultSettings()
	if !s.read(ctx, sessionID, KeySettings, &settings) {
		return domain.DefaultSettings()
	}
	return settings.Normalized()
}

func (s *DraftStore) SaveSettings(ctx context.Context, sessionID uuid.UUID, settings domain.Settings) (domain.Settings, error) {
	settings = settings.Normalized()
	data, err := json.Marshal(settings)
	if err != nil {
		return settings, err
	}
	return settings, s.values.Set(ctx, sessionID, KeySettings, data)
}
