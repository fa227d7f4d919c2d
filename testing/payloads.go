// Package testing provides helpers for testing applications that use
// billingkit: provider-shaped webhook payload builders and signed bearer
// tokens for the read API, so integration tests need neither a real
// subscription provider nor a real auth backend.
//
// Example usage:
//
//	body := testing.Payload("evt_1", "user_1", testing.WithEventType("RENEWAL"),
//		testing.WithEntitlements(map[string]any{"identifier": "premium"}))
//	token := testing.Token("jwt-secret", "user_1")
package testing

import (
	"encoding/json"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// PayloadOption mutates the envelope map before it is marshaled.
type PayloadOption func(event map[string]any, envelope map[string]any)

// WithEventType overrides the default INITIAL_PURCHASE type.
func WithEventType(t string) PayloadOption {
	return func(event, _ map[string]any) { event["type"] = t }
}

// WithEnvironment sets the provider environment field.
func WithEnvironment(env string) PayloadOption {
	return func(event, _ map[string]any) { event["environment"] = env }
}

// WithPlatform sets the top-level platform field.
func WithPlatform(p string) PayloadOption {
	return func(_, envelope map[string]any) { envelope["platform"] = p }
}

// WithOriginalAppUserID sets the original app-user id on the event.
func WithOriginalAppUserID(id string) PayloadOption {
	return func(event, _ map[string]any) { event["original_app_user_id"] = id }
}

// WithEntitlements sets the entitlements field to an array of entries.
func WithEntitlements(entries ...map[string]any) PayloadOption {
	return func(event, _ map[string]any) { event["entitlements"] = entries }
}

// WithSingleEntitlement sets the entitlements field to one bare object, the
// non-array shape some providers send.
func WithSingleEntitlement(entry map[string]any) PayloadOption {
	return func(event, _ map[string]any) { event["entitlements"] = entry }
}

// Payload builds a provider-shaped webhook body. Defaults: type
// INITIAL_PURCHASE, environment PRODUCTION, platform ios, no entitlements.
func Payload(eventID, appUserID string, opts ...PayloadOption) []byte {
	event := map[string]any{
		"id":          eventID,
		"app_user_id": appUserID,
		"type":        "INITIAL_PURCHASE",
		"environment": "PRODUCTION",
	}
	envelope := map[string]any{
		"event":    event,
		"platform": "ios",
	}
	for _, opt := range opts {
		opt(event, envelope)
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		panic("failed to marshal test payload: " + err.Error())
	}
	return b
}

// Token signs an HS256 bearer token with the given subject, valid for an hour.
func Token(secret, userID string) string {
	return TokenWithExpiry(secret, userID, time.Now().Add(time.Hour))
}

// TokenWithExpiry signs an HS256 bearer token with a custom expiry. Pass a
// past time to test expiration handling.
func TokenWithExpiry(secret, userID string, expiry time.Time) string {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": expiry.Unix(),
		"iat": time.Now().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		panic("failed to sign test token: " + err.Error())
	}
	return signed
}
