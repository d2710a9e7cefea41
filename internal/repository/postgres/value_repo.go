package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type valueRepository struct {
	db *gorm.DB
}

func NewValueRepository(db *gorm.DB) *valueRepository {
	return &valueRepository{db: db}
}

func (r *valueRepository) Get(ctx context.Context, sessionID uuid.UUID, key string) ([]byte, error) {
	var v domain.StoredValue
	err := r.db.WithContext(ctx).First(&v, "session_id = ? AND key = ?", sessionID, key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return []byte(v.Value), nil
}

func (r *valueRepository) Set(ctx context.Context, sessionID uuid.UUID, key string, value []byte) error {
	v := domain.StoredValue{
		SessionID: sessionID,
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&v).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *valueRepository) Delete(ctx context.Context, sessionID uuid.UUID, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Delete(&domain.StoredValue{}, "session_id = ? AND key IN ?", sessionID, keys).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}
