// Package ledger records which event IDs the email worker has already
// processed. The primary key on processed_messages is the real dedup guard:
// two deliveries racing on the same event ID both reach the insert, and
// exactly one wins.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/utkarshsingh/money-manager-backend/pkg/db"
	"github.com/utkarshsingh/money-manager-backend/pkg/db/models"
)

// ErrAlreadyProcessed means another delivery of the same event committed first.
// Callers treat it as a duplicate to acknowledge, never as a failure.
var ErrAlreadyProcessed = errors.New("event already processed")

// Repository exposes the processed-message ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, eventID uuid.UUID) error
	Exists(ctx context.Context, eventID uuid.UUID) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Insert claims the event ID. A unique violation is classified as
// ErrAlreadyProcessed so the caller can distinguish duplicates from real
// database failures.
func (r *repositoryImpl) Insert(ctx context.Context, eventID uuid.UUID) error {
	row := models.ProcessedMessage{
		EventID:     eventID,
		ProcessedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return nil
	}
	// The only constraint on processed_messages is the event_id primary key,
	// so any unique violation here is a duplicate claim.
	if dbpkg.IsUniqueViolation(err, "") {
		return ErrAlreadyProcessed
	}
	return err
}

func (r *repositoryImpl) Exists(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedMessage{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}
