package repository

import (
	"context"

	"github.com/google/uuid"
)

// KeyValueRepository stores independent blobs per session. Get returns
// domain.ErrNotFound for a missing key.
type KeyValueRepository interface {
	Get(ctx context.Context, sessionID uuid.UUID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID uuid.UUID, key string, value []byte) error
	Delete(ctx context.Context, sessionID uuid.UUID, keys ...string) error
}

// SessionMarkerRepository remembers which sessions already entered the draft
// page so that a reload resumes instead of starting over.
type SessionMarkerRepository interface {
	MarkVisited(ctx context.Context, sessionID uuid.UUID) error
	IsVisited(ctx context.Context, sessionID uuid.UUID) (bool, error)
	ClearVisited(ctx context.Context, sessionID uuid.UUID) error
}

type Repositories struct {
	Values KeyValueRepository
	Visits SessionMarkerRepository
}
