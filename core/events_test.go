package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	grants := []string{"INITIAL_PURCHASE", "RENEWAL", "UNCANCELLATION", "BILLING_ISSUE_RESOLVED", "PRODUCT_CHANGE"}
	for _, typ := range grants {
		if Classify(typ) != CategoryGrant {
			t.Fatalf("expected %s to classify as grant", typ)
		}
	}
	revokes := []string{"CANCELLATION", "EXPIRATION"}
	for _, typ := range revokes {
		if Classify(typ) != CategoryRevoke {
			t.Fatalf("expected %s to classify as revoke", typ)
		}
	}
	if Classify("TEST") != CategoryOther {
		t.Fatalf("expected TEST to classify as other")
	}
	if Classify(" renewal ") != CategoryGrant {
		t.Fatalf("expected case-insensitive classification")
	}
}

func TestNormalizeEntitlements(t *testing.T) {
	// Absent and null both mean an empty sequence.
	for _, raw := range []string{"", "null"} {
		got, err := NormalizeEntitlements(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("normalize %q: %v", raw, err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty sequence for %q, got %d entries", raw, len(got))
		}
	}

	// A single object becomes a one-element sequence.
	got, err := NormalizeEntitlements(json.RawMessage(`{"identifier":"premium","product_id":"monthly"}`))
	if err != nil {
		t.Fatalf("normalize object: %v", err)
	}
	if len(got) != 1 || got[0].Identifier != "premium" || got[0].ProductID != "monthly" {
		t.Fatalf("unexpected normalization of single object: %#v", got)
	}

	// Arrays stay element-wise in order.
	got, err = NormalizeEntitlements(json.RawMessage(`[{"name":"a"},{"name":"b"}]`))
	if err != nil {
		t.Fatalf("normalize array: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("unexpected normalization of array: %#v", got)
	}
}

func TestEntitlementName_FallbackChain(t *testing.T) {
	cases := []struct {
		entry EntitlementEntry
		want  string
	}{
		{EntitlementEntry{Name: "gold", Identifier: "silver"}, "gold"},
		{EntitlementEntry{Identifier: "silver"}, "silver"},
		{EntitlementEntry{Name: "  "}, "premium"},
		{EntitlementEntry{}, "premium"},
	}
	for _, c := range cases {
		if got := c.entry.EntitlementName(); got != c.want {
			t.Fatalf("fallback for %#v: got %q, want %q", c.entry, got, c.want)
		}
	}
}

func TestExpiresAt(t *testing.T) {
	e := EntitlementEntry{ExpiresDate: "2026-09-01T12:00:00Z"}
	got := e.ExpiresAt()
	if got == nil {
		t.Fatalf("expected parsed expiry")
	}
	want := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if (EntitlementEntry{}).ExpiresAt() != nil {
		t.Fatalf("expected nil expiry when absent")
	}
	if (EntitlementEntry{ExpiresDate: "not-a-date"}).ExpiresAt() != nil {
		t.Fatalf("expected nil expiry for unparseable value")
	}
}

func TestParseEnvelope(t *testing.T) {
	if _, err := ParseEnvelope([]byte(`{}`)); err != ErrMissingEvent {
		t.Fatalf("expected ErrMissingEvent for empty object, got %v", err)
	}
	if _, err := ParseEnvelope([]byte(`not json`)); err != ErrMissingEvent {
		t.Fatalf("expected ErrMissingEvent for garbage, got %v", err)
	}
	env, err := ParseEnvelope([]byte(`{"event":{"id":"evt_1","app_user_id":"u1","type":"RENEWAL"},"platform":"ios"}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Event.ID != "evt_1" || env.Platform != "ios" {
		t.Fatalf("unexpected envelope: %#v", env)
	}
}
