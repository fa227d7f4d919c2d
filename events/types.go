package events

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is one received provider notification, logged before any
// entitlement mutation. EventID is the provider's natural key; inserting the
// same EventID twice is a no-op so redelivery never errors.
type WebhookEvent struct {
	ID          uuid.UUID
	EventID     string
	AppUserID   string
	Type        string
	Environment string
	Platform    string
	Payload     []byte
	Processed   bool
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
