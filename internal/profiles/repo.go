package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/utkarshsingh/money-manager-backend/pkg/db/models"
)

// Repository exposes persistence helpers for profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, profile *models.Profile) error
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindByActivationToken(ctx context.Context, token string) (*models.Profile, error)
	Activate(ctx context.Context, id uuid.UUID) error
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

func (r *repositoryImpl) Create(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return errors.New("profile required")
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repositoryImpl) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) FindByActivationToken(ctx context.Context, token string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("activation_token = ?", token).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Activate flips the profile active and clears the one-time token.
func (r *repositoryImpl) Activate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":         true,
			"activation_token":  nil,
			"activation_expiry": nil,
			"updated_at":        time.Now().UTC(),
		}).Error
}
