package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	redisclient "github.com/dom/lotus-draft/internal/redis"
	"github.com/dom/lotus-draft/internal/repository"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	valueKeyPrefix = "lotus:session:"
	visitKeyPrefix = "lotus:visited:"
)

type Config struct {
	Client redisclient.Client
	// StateTTL bounds how long an abandoned draft is kept. Zero keeps it forever.
	StateTTL time.Duration
	VisitTTL time.Duration
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("redis store: config cannot be nil")
	}
	if cfg.Client == nil {
		return errors.New("redis store: client cannot be nil")
	}
	if cfg.VisitTTL <= 0 {
		return errors.New("redis store: visit TTL must be positive")
	}
	return nil
}

func NewRepositories(cfg *Config) (*repository.Repositories, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &repository.Repositories{
		Values: &valueStore{client: cfg.Client, ttl: cfg.StateTTL},
		Visits: &visitStore{client: cfg.Client, ttl: cfg.VisitTTL},
	}, nil
}

func valueKey(sessionID uuid.UUID, key string) string {
	return valueKeyPrefix + sessionID.String() + ":" + key
}

type valueStore struct {
	client redisclient.Client
	ttl    time.Duration
}

func (s *valueStore) Get(ctx context.Context, sessionID uuid.UUID, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, valueKey(sessionID, key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return data, nil
}

func (s *valueStore) Set(ctx context.Context, sessionID uuid.UUID, key string, value []byte) error {
	if err := s.client.Set(ctx, valueKey(sessionID, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *valueStore) Delete(ctx context.Context, sessionID uuid.UUID, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = valueKey(sessionID, k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

type visitStore struct {
	client redisclient.Client
	ttl    time.Duration
}

func (s *visitStore) MarkVisited(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.client.Set(ctx, visitKeyPrefix+sessionID.String(), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *visitStore) IsVisited(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, visitKeyPrefix+sessionID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return n > 0, nil
}

func (s *visitStore) ClearVisited(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.client.Del(ctx, visitKeyPrefix+sessionID.String()).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}
