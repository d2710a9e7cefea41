package postgres

import (
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/dom/lotus-draft/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.StoredValue{},
		&domain.SessionVisit{},
	)
}

func NewRepositories(db *gorm.DB, visitTTL time.Duration, clk clock.Clock) *repository.Repositories {
	return &repository.Repositories{
		Values: NewValueRepository(db),
		Visits: NewVisitRepository(db, visitTTL, clk),
	}
}
