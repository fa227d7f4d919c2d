package entitlements

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement represents a user's grant (e.g., premium), with optional expiry.
// Rows are never deleted; revocation sets RevokedAt so the audit trail survives.
type Entitlement struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name"`
	ProductID          string     `json:"product_id,omitempty"`
	Platform           string     `json:"platform,omitempty"`
	Source             string     `json:"source,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	RevokedAt          *time.Time `json:"revoked_at,omitempty"`
	RevokeReason       string     `json:"revoke_reason,omitempty"`
	OriginalAppUserID  string     `json:"original_app_user_id,omitempty"`
	OriginatingEventID string     `json:"originating_event_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Active reports whether the entitlement currently confers access.
func (e Entitlement) Active(now time.Time) bool {
	if e.RevokedAt != nil {
		return false
	}
	if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
		return false
	}
	return true
}

// GrantParams carries the full argument set of the grant procedure.
// EventID ties the mutation back to the originating webhook event.
type GrantParams struct {
	UserID            string
	Name              string
	ProductID         string
	Platform          string
	Source            string
	ExpiresAt         *time.Time
	OriginalAppUserID string
	EventID           string
}

// RevokeParams carries the argument set of the revoke procedure. Reason is the
// raw provider event type (e.g. "CANCELLATION").
type RevokeParams struct {
	UserID  string
	Name    string
	Reason  string
	EventID string
}
