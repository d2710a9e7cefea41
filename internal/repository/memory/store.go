// Package memory keeps session data in process. It backs local development
// and tests; everything is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/dom/lotus-draft/internal/repository"
	"github.com/google/uuid"
)

func NewRepositories(visitTTL time.Duration, clk clock.Clock) *repository.Repositories {
	return &repository.Repositories{
		Values: NewValueStore(),
		Visits: NewVisitStore(visitTTL, clk),
	}
}

type ValueStore struct {
	mu     sync.RWMutex
	values map[uuid.UUID]map[string][]byte
}

func NewValueStore() *ValueStore {
	return &ValueStore{values: make(map[uuid.UUID]map[string][]byte)}
}

func (s *ValueStore) Get(_ context.Context, sessionID uuid.UUID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[sessionID][key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *ValueStore) Set(_ context.Context, sessionID uuid.UUID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.values[sessionID]
	if !ok {
		session = make(map[string][]byte)
		s.values[sessionID] = session
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	session[key] = stored
	return nil
}

func (s *ValueStore) Delete(_ context.Context, sessionID uuid.UUID, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.values[sessionID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(session, k)
	}
	if len(session) == 0 {
		delete(s.values, sessionID)
	}
	return nil
}

type VisitStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	expires map[uuid.UUID]time.Time
}

func NewVisitStore(ttl time.Duration, clk clock.Clock) *VisitStore {
	if clk == nil {
		clk = clock.New()
	}
	return &VisitStore{ttl: ttl, clock: clk, expires: make(map[uuid.UUID]time.Time)}
}

func (s *VisitStore) MarkVisited(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[sessionID] = s.clock.Now().Add(s.ttl)
	return nil
}

func (s *VisitStore) IsVisited(_ context.Context, sessionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expires[sessionID]
	if !ok {
		return false, nil
	}
	if !s.clock.Now().Before(exp) {
		delete(s.expires, sessionID)
		return false, nil
	}
	return true, nil
}

func (s *VisitStore) ClearVisited(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, sessionID)
	return nil
}
