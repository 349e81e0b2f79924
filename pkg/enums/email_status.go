package enums

import "fmt"

// EmailStatus maps to the email_status enum in Postgres. Unlike EventStatus,
// a FAILED email stays eligible for the fallback sweep.
type EmailStatus string

const (
	EmailStatusPending EmailStatus = "PENDING"
	EmailStatusSent    EmailStatus = "SENT"
	EmailStatusFailed  EmailStatus = "FAILED"
)

var validEmailStatuses = []EmailStatus{
	EmailStatusPending,
	EmailStatusSent,
	EmailStatusFailed,
}

// IsValid reports whether the value matches the canonical email_status enum.
func (s EmailStatus) IsValid() bool {
	for _, candidate := range validEmailStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEmailStatus converts raw input into EmailStatus.
func ParseEmailStatus(value string) (EmailStatus, error) {
	for _, candidate := range validEmailStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid email status %q", value)
}
