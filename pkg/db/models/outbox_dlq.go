package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
)

// OutboxDLQ captures terminal relay failures for auditing and remediation.
// Rows here are written in the same transaction that marks the staged event
// FAILED; nothing in the pipeline replays them automatically.
type OutboxDLQ struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID      uuid.UUID                  `gorm:"column:event_id;type:uuid;not null"`
	EventType    enums.OutboxEventType      `gorm:"column:event_type;not null"`
	AggregateID  uuid.UUID                  `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload      json.RawMessage            `gorm:"column:payload;type:jsonb;not null"`
	ErrorReason  enums.OutboxDLQErrorReason `gorm:"column:error_reason;not null"`
	ErrorMessage *string                    `gorm:"column:error_message"`
	RetryCount   int                        `gorm:"column:retry_count;not null;default:0"`
	FailedAt     time.Time                  `gorm:"column:failed_at;autoCreateTime"`
}

// TableName overrides the default GORM pluralization.
func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}
