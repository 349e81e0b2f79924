package payloads

import "github.com/google/uuid"

// ProfileActivationEvent is the payload staged when a profile registers and
// carried on the activation topic. EventID duplicates the message attribute so
// the payload is self-describing when inspected in the DLQ.
type ProfileActivationEvent struct {
	EventID         uuid.UUID `json:"eventId"`
	ProfileID       uuid.UUID `json:"profileId"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName"`
	ActivationToken string    `json:"activationToken"`
}
