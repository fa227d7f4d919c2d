package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Envelope is the wire shape of an inbound subscription webhook:
// { "event": {...}, "platform": "ios" }.
type Envelope struct {
	Event    *Event `json:"event"`
	Platform string `json:"platform"`
}

// Event is the provider's lifecycle notification. Entitlements is kept raw
// because providers send it as an object, an array, or not at all.
type Event struct {
	ID                string          `json:"id"`
	AppUserID         string          `json:"app_user_id"`
	OriginalAppUserID string          `json:"original_app_user_id"`
	Type              string          `json:"type"`
	Environment       string          `json:"environment"`
	Entitlements      json.RawMessage `json:"entitlements"`
}

// EntitlementEntry is one normalized element of the event's entitlements field.
type EntitlementEntry struct {
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	ProductID   string `json:"product_id"`
	ExpiresDate string `json:"expires_date"`
}

// DefaultEntitlementName is the last resort of the name fallback chain
// (name, then identifier, then this).
const DefaultEntitlementName = "premium"

// EntitlementName resolves the entry's name through the fallback chain.
func (e EntitlementEntry) EntitlementName() string {
	if n := strings.TrimSpace(e.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(e.Identifier); n != "" {
		return n
	}
	return DefaultEntitlementName
}

// ExpiresAt parses the entry's ISO-8601 expiration, nil when absent or
// unparseable.
func (e EntitlementEntry) ExpiresAt() *time.Time {
	s := strings.TrimSpace(e.ExpiresDate)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// Provider event types that grant or extend an entitlement.
const (
	EventInitialPurchase      = "INITIAL_PURCHASE"
	EventRenewal              = "RENEWAL"
	EventUncancellation       = "UNCANCELLATION"
	EventBillingIssueResolved = "BILLING_ISSUE_RESOLVED"
	EventProductChange        = "PRODUCT_CHANGE"
)

// Provider event types that revoke an entitlement.
const (
	EventCancellation = "CANCELLATION"
	EventExpiration   = "EXPIRATION"
)

// EventCategory classifies an event type for processing.
type EventCategory int

const (
	CategoryOther EventCategory = iota
	CategoryGrant
	CategoryRevoke
)

// Classify maps a provider event type onto grant/revoke/other. Types outside
// both sets are logged but trigger no entitlement mutation.
func Classify(eventType string) EventCategory {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case EventInitialPurchase, EventRenewal, EventUncancellation, EventBillingIssueResolved, EventProductChange:
		return CategoryGrant
	case EventCancellation, EventExpiration:
		return CategoryRevoke
	default:
		return CategoryOther
	}
}

// NormalizeEntitlements flattens the raw entitlements field into an ordered
// sequence: absent or null becomes empty, a single object becomes one element,
// an array stays element-wise in order.
func NormalizeEntitlements(raw json.RawMessage) ([]EntitlementEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []EntitlementEntry
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one EntitlementEntry
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []EntitlementEntry{one}, nil
}

// ParseEnvelope decodes a webhook body. A syntactically valid body without an
// event object is the malformed-request case.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, ErrMissingEvent
	}
	if env.Event == nil {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}
