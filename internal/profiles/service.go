package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/utkarshsingh/money-manager-backend/pkg/config"
	dbpkg "github.com/utkarshsingh/money-manager-backend/pkg/db"
	"github.com/utkarshsingh/money-manager-backend/pkg/db/models"
	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
	pkgerrors "github.com/utkarshsingh/money-manager-backend/pkg/errors"
	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
	"github.com/utkarshsingh/money-manager-backend/pkg/outbox"
	"github.com/utkarshsingh/money-manager-backend/pkg/outbox/payloads"
	"github.com/utkarshsingh/money-manager-backend/pkg/security"
)

// Service defines profile registration and activation.
type Service interface {
	Register(ctx context.Context, params RegisterParams) (*models.Profile, error)
	Activate(ctx context.Context, token string) (*models.Profile, error)
}

// RegisterParams carries validated registration input.
type RegisterParams struct {
	Email    string
	Password string
	FullName string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	db         txRunner
	repo       Repository
	events     *outbox.Service
	password   config.PasswordConfig
	activation config.ActivationConfig
	logg       *logger.Logger
}

// ServiceParams wires profile service dependencies.
type ServiceParams struct {
	DB         txRunner
	Repo       Repository
	Events     *outbox.Service
	Password   config.PasswordConfig
	Activation config.ActivationConfig
	Logger     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profiles repository required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	return &service{
		db:         params.DB,
		repo:       params.Repo,
		events:     params.Events,
		password:   params.Password,
		activation: params.Activation,
		logg:       params.Logger,
	}, nil
}

// Register creates an inactive profile and stages its activation event in the
// same transaction. Nothing is published here; the relay owns delivery, so a
// broker outage cannot fail or slow down registration.
func (s *service) Register(ctx context.Context, params RegisterParams) (*models.Profile, error) {
	existing, err := s.repo.FindByEmail(ctx, params.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup profile by email")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(params.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	token, err := security.GenerateActivationToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate activation token")
	}

	expiry := time.Now().UTC().Add(s.activation.TokenExpiry)
	profile := &models.Profile{
		ID:               uuid.New(),
		Email:            params.Email,
		PasswordHash:     hash,
		FullName:         params.FullName,
		IsActive:         false,
		ActivationToken:  &token,
		ActivationExpiry: &expiry,
	}

	eventID := uuid.New()
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, profile); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_profiles_email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
		}
		_, err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventID:       eventID,
			EventType:     enums.EventProfileActivation,
			AggregateType: enums.AggregateProfile,
			AggregateID:   profile.ID,
			Data: payloads.ProfileActivationEvent{
				EventID:         eventID,
				ProfileID:       profile.ID,
				Email:           profile.Email,
				FullName:        profile.FullName,
				ActivationToken: token,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stage activation event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"profile_id": profile.ID.String(),
			"event_id":   eventID.String(),
		})
		s.logg.Info(logCtx, "profile registered")
	}
	return profile, nil
}

// Activate consumes a one-time activation token. The token is cleared on
// success, so replaying the link reports it as invalid.
func (s *service) Activate(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "activation token required")
	}

	profile, err := s.repo.FindByActivationToken(ctx, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup activation token")
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid activation token")
	}
	if profile.ActivationExpiry != nil && time.Now().UTC().After(*profile.ActivationExpiry) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "activation token has expired")
	}

	if err := s.repo.Activate(ctx, profile.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate profile")
	}
	profile.IsActive = true
	profile.ActivationToken = nil
	profile.ActivationExpiry = nil

	if s.logg != nil {
		s.logg.Info(s.logg.WithProfileID(ctx, profile.ID.String()), "profile activated")
	}
	return profile, nil
}
