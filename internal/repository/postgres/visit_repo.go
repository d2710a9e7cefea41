package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type visitRepository struct {
	db    *gorm.DB
	ttl   time.Duration
	clock clock.Clock
}

func NewVisitRepository(db *gorm.DB, ttl time.Duration, clk clock.Clock) *visitRepository {
	if clk == nil {
		clk = clock.New()
	}
	return &visitRepository{db: db, ttl: ttl, clock: clk}
}

func (r *visitRepository) MarkVisited(ctx context.Context, sessionID uuid.UUID) error {
	now := r.clock.Now()
	visit := domain.SessionVisit{
		SessionID: sessionID,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(&visit).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *visitRepository) IsVisited(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.SessionVisit{}).
		Where("session_id = ? AND expires_at > ?", sessionID, r.clock.Now()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return count > 0, nil
}

func (r *visitRepository) ClearVisited(ctx context.Context, sessionID uuid.UUID) error {
	err := r.db.WithContext(ctx).Delete(&domain.SessionVisit{}, "session_id = ?", sessionID).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// PurgeExpired removes visit markers whose TTL has passed.
func (r *visitRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", r.clock.Now()).
		Delete(&domain.SessionVisit{})
	return res.RowsAffected, res.Error
}
