package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedMessage is the idempotency ledger. The primary key on event_id is
// the real duplicate guard; existence of a row means the event's side effect
// has been (or is being) executed.
type ProcessedMessage struct {
	EventID     uuid.UUID `gorm:"column:event_id;type:uuid;primaryKey"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

// TableName overrides the default GORM pluralization.
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}
