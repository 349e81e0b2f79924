package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utkarshsingh/money-manager-backend/api/responses"
	"github.com/utkarshsingh/money-manager-backend/api/validators"
	"github.com/utkarshsingh/money-manager-backend/internal/profiles"
	pkgerrors "github.com/utkarshsingh/money-manager-backend/pkg/errors"
	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"fullName" validate:"required,min=1,max=255"`
}

type profileResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterProfile creates an inactive profile and stages its activation event.
func RegisterProfile(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		profile, err := svc.Register(ctx, profiles.RegisterParams{
			Email:    req.Email,
			Password: req.Password,
			FullName: req.FullName,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, profileResponse{
			ID:        profile.ID,
			Email:     profile.Email,
			FullName:  profile.FullName,
			IsActive:  profile.IsActive,
			CreatedAt: profile.CreatedAt,
		})
	}
}

// ActivateProfile consumes the emailed one-time token.
func ActivateProfile(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := r.URL.Query().Get("token")
		if token == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "token query parameter required"))
			return
		}

		if _, err := svc.Activate(ctx, token); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"message": "profile activated successfully"})
	}
}
