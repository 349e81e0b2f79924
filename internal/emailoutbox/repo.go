package emailoutbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/utkarshsingh/money-manager-backend/pkg/db/models"
	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
)

// Repository exposes persistence helpers for the email outbox.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, row *models.EmailOutbox) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EmailOutbox, error)
	// FetchSweepable returns the oldest rows still owed a delivery attempt.
	// Failed rows stay eligible so transient SMTP outages heal on the next
	// sweep without operator involvement.
	FetchSweepable(ctx context.Context, limit int) ([]models.EmailOutbox, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
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

func (r *repositoryImpl) Insert(ctx context.Context, row *models.EmailOutbox) error {
	if row == nil {
		return errors.New("email outbox row required")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.Status == "" {
		row.Status = enums.EmailStatusPending
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.EmailOutbox, error) {
	var row models.EmailOutbox
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) FetchSweepable(ctx context.Context, limit int) ([]models.EmailOutbox, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.EmailOutbox
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.EmailStatus{enums.EmailStatusPending, enums.EmailStatusFailed}).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) MarkSent(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.EmailOutbox{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  enums.EmailStatusSent,
			"sent_at": time.Now().UTC(),
		}).Error
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return r.db.WithContext(ctx).
		Model(&models.EmailOutbox{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.EmailStatusFailed,
			"last_error": cause.Error(),
		}).Error
}
