package enums

import "fmt"

// EventStatus maps to the event_status enum in Postgres. A staged event only
// ever moves PENDING -> SENT or PENDING -> FAILED.
type EventStatus string

const (
	EventStatusPending EventStatus = "PENDING"
	EventStatusSent    EventStatus = "SENT"
	EventStatusFailed  EventStatus = "FAILED"
)

var validEventStatuses = []EventStatus{
	EventStatusPending,
	EventStatusSent,
	EventStatusFailed,
}

// IsValid reports whether the value matches the canonical event_status enum.
func (s EventStatus) IsValid() bool {
	for _, candidate := range validEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transition.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusSent || s == EventStatusFailed
}

// ParseEventStatus converts raw input into EventStatus.
func ParseEventStatus(value string) (EventStatus, error) {
	for _, candidate := range validEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event status %q", value)
}
