package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
)

// OutboxEvent is a producer-side staged event. It is written in the same
// transaction as the business change it announces and only the relay ever
// mutates its status afterwards.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                 `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_outbox_events_event_id"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.EventStatus         `gorm:"column:status;not null;default:PENDING"`
	RetryCount    int                       `gorm:"column:retry_count;not null;default:0"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt   *time.Time                `gorm:"column:processed_at"`
	LastError     *string                   `gorm:"column:last_error"`
}

// TableName overrides the default GORM pluralization.
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
