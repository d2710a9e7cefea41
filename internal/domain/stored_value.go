package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StoredValue is one persisted blob of a session's draft data.
type StoredValue struct {
	SessionID uuid.UUID      `gorm:"type:uuid;primaryKey" json:"sessionId"`
	Key       string         `gorm:"type:varchar(64);primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null" json:"value"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (StoredValue) TableName() string {
	return "session_values"
}

// SessionVisit marks a session that has already entered the draft page.
type SessionVisit struct {
	SessionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"sessionId"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
