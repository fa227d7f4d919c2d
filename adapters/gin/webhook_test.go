package billgin

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	core "github.com/open-rails/billingkit/core"
	"github.com/open-rails/billingkit/events"
	memorystore "github.com/open-rails/billingkit/storage/memory"
	billtesting "github.com/open-rails/billingkit/testing"
)

func newTestRouter(t *testing.T, cfg core.Config) (*gin.Engine, *memorystore.EventStore, *memorystore.EntitlementStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	evs := memorystore.NewEventStore()
	ents := memorystore.NewEntitlementStore()
	svc := core.NewService(cfg, evs, ents)
	r := gin.New()
	RegisterAPI(r, svc, Options{})
	return r, evs, ents
}

func postWebhook(r *gin.Engine, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/billing/webhooks/revenuecat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_OptionsPreflight(t *testing.T) {
	r, _, _ := newTestRouter(t, core.Config{})

	req := httptest.NewRequest(http.MethodOptions, "/billing/webhooks/revenuecat", bytes.NewReader([]byte("ignored garbage")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("expected 200/ok, got %d/%q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "authorization, x-client-info, apikey, content-type" {
		t.Fatalf("unexpected allow headers: %q", got)
	}
}

func TestWebhook_MissingEventIs400WithNoWrites(t *testing.T) {
	r, evs, _ := newTestRouter(t, core.Config{})

	w := postWebhook(r, []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if evs.Len() != 0 {
		t.Fatalf("expected zero event rows after 400, got %d", evs.Len())
	}
}

func TestWebhook_GrantHappyPath(t *testing.T) {
	r, evs, ents := newTestRouter(t, core.Config{})

	body := billtesting.Payload("evt_1", "u1",
		billtesting.WithEntitlements(map[string]any{"identifier": "premium", "product_id": "monthly"}))
	w := postWebhook(r, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	row, ok := evs.Get("evt_1")
	if !ok || !row.Processed {
		t.Fatalf("expected processed event row, got %#v", row)
	}
	list, err := ents.ListByUser(context.Background(), "u1")
	if err != nil || len(list) != 1 || list[0].Name != "premium" {
		t.Fatalf("expected granted entitlement, got %#v (%v)", list, err)
	}
	if !list[0].Active(time.Now()) {
		t.Fatalf("expected active entitlement")
	}
}

func TestWebhook_DuplicateDeliveryStill200(t *testing.T) {
	r, evs, _ := newTestRouter(t, core.Config{})

	body := billtesting.Payload("evt_dup", "u1",
		billtesting.WithEntitlements(map[string]any{"identifier": "premium"}))
	if w := postWebhook(r, body); w.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", w.Code)
	}
	w := postWebhook(r, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d: %s", w.Code, w.Body.String())
	}
	if evs.Len() != 1 {
		t.Fatalf("expected one event row, got %d", evs.Len())
	}
}

func TestWebhook_RevokeFlagsEntitlement(t *testing.T) {
	r, _, ents := newTestRouter(t, core.Config{})

	grant := billtesting.Payload("evt_g", "u1",
		billtesting.WithEntitlements(map[string]any{"identifier": "premium"}))
	if w := postWebhook(r, grant); w.Code != http.StatusOK {
		t.Fatalf("grant delivery: %d", w.Code)
	}
	revoke := billtesting.Payload("evt_r", "u1",
		billtesting.WithEventType("CANCELLATION"),
		billtesting.WithEntitlements(map[string]any{"identifier": "premium"}))
	if w := postWebhook(r, revoke); w.Code != http.StatusOK {
		t.Fatalf("revoke delivery: %d", w.Code)
	}

	list, _ := ents.ListByUser(context.Background(), "u1")
	if len(list) != 1 {
		t.Fatalf("expected the row to survive revocation, got %d rows", len(list))
	}
	if list[0].RevokedAt == nil || list[0].RevokeReason != "CANCELLATION" {
		t.Fatalf("expected revoked row with reason, got %#v", list[0])
	}
	if list[0].Active(time.Now()) {
		t.Fatalf("expected inactive entitlement after revoke")
	}
}

type failingEventStore struct{}

func (failingEventStore) Insert(ctx context.Context, ev events.WebhookEvent) (bool, error) {
	return false, fmt.Errorf("connection refused")
}
func (failingEventStore) MarkProcessed(ctx context.Context, eventID string) error { return nil }
func (failingEventStore) ListUnprocessed(ctx context.Context, minAge time.Duration, limit int) ([]events.WebhookEvent, error) {
	return nil, nil
}

func TestWebhook_StoreFailureIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := core.NewService(core.Config{}, failingEventStore{}, memorystore.NewEntitlementStore())
	r := gin.New()
	RegisterAPI(r, svc, Options{})

	w := postWebhook(r, billtesting.Payload("evt_1", "u1"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
}

func TestWebhook_SecretMismatchIs401BeforeAnyWrite(t *testing.T) {
	r, evs, _ := newTestRouter(t, core.Config{WebhookSecret: "s3cret"})

	req := httptest.NewRequest(http.MethodPost, "/billing/webhooks/revenuecat", bytes.NewReader(billtesting.Payload("evt_1", "u1")))
	req.Header.Set("Authorization", "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if evs.Len() != 0 {
		t.Fatalf("expected zero writes on auth failure, got %d", evs.Len())
	}

	// Matching secret goes through.
	req2 := httptest.NewRequest(http.MethodPost, "/billing/webhooks/revenuecat", bytes.NewReader(billtesting.Payload("evt_1", "u1")))
	req2.Header.Set("Authorization", "s3cret")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct secret, got %d", w2.Code)
	}
}

type denyAllLimiter struct{}

func (denyAllLimiter) AllowNamed(bucket, key string) (bool, error) { return false, nil }

func TestWebhook_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := core.NewService(core.Config{}, memorystore.NewEventStore(), memorystore.NewEntitlementStore())
	r := gin.New()
	RegisterAPI(r, svc, Options{Limiter: denyAllLimiter{}})

	w := postWebhook(r, billtesting.Payload("evt_1", "u1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
