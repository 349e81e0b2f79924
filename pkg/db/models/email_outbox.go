package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
)

// EmailOutbox is a consumer-side staged send: fully resolved recipient,
// subject and body, written in the same transaction as the idempotency
// ledger entry for the originating event.
type EmailOutbox struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	EventID   uuid.UUID         `gorm:"column:event_id;type:uuid;not null"`
	Recipient string            `gorm:"column:recipient;not null"`
	Subject   string            `gorm:"column:subject;not null"`
	Body      string            `gorm:"column:body;not null"`
	Status    enums.EmailStatus `gorm:"column:status;not null;default:PENDING"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	SentAt    *time.Time        `gorm:"column:sent_at"`
	LastError *string           `gorm:"column:last_error"`
}

// TableName overrides the default GORM pluralization.
func (EmailOutbox) TableName() string {
	return "email_outbox"
}
