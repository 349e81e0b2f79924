package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a registered money-manager account awaiting (or past) activation.
type Profile struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email            string     `gorm:"column:email;not null;uniqueIndex:ux_profiles_email"`
	PasswordHash     string     `gorm:"column:password_hash;not null"`
	FullName         string     `gorm:"column:full_name;not null"`
	IsActive         bool       `gorm:"column:is_active;not null;default:false"`
	ActivationToken  *string    `gorm:"column:activation_token;uniqueIndex:ux_profiles_activation_token"`
	ActivationExpiry *time.Time `gorm:"column:activation_expiry"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default GORM pluralization.
func (Profile) TableName() string {
	return "profiles"
}
