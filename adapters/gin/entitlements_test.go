package billgin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	core "github.com/open-rails/billingkit/core"
	"github.com/open-rails/billingkit/entitlements"
	memorystore "github.com/open-rails/billingkit/storage/memory"
	billtesting "github.com/open-rails/billingkit/testing"
)

const testJWTSecret = "jwt-test-secret"

func newReadRouter(t *testing.T, cache EntitlementCache) (*gin.Engine, *memorystore.EntitlementStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ents := memorystore.NewEntitlementStore()
	svc := core.NewService(core.Config{}, memorystore.NewEventStore(), ents)
	r := gin.New()
	RegisterAPI(r, svc, Options{JWTSecret: testJWTSecret, Reader: ents, Cache: cache})
	return r, ents
}

func getEntitlements(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/billing/entitlements", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEntitlementsGET_RequiresToken(t *testing.T) {
	r, _ := newReadRouter(t, nil)

	if w := getEntitlements(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := getEntitlements(r, "not-a-token"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}
	expired := billtesting.TokenWithExpiry(testJWTSecret, "u1", time.Now().Add(-time.Hour))
	if w := getEntitlements(r, expired); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", w.Code)
	}
	wrongKey := billtesting.Token("other-secret", "u1")
	if w := getEntitlements(r, wrongKey); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token signed with wrong secret, got %d", w.Code)
	}
}

func TestEntitlementsGET_ListsOwnRows(t *testing.T) {
	r, ents := newReadRouter(t, nil)

	_ = ents.Grant(context.Background(), entitlements.GrantParams{UserID: "u1", Name: "premium", Source: "revenuecat"})
	_ = ents.Grant(context.Background(), entitlements.GrantParams{UserID: "u2", Name: "premium", Source: "revenuecat"})

	w := getEntitlements(r, billtesting.Token(testJWTSecret, "u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Entitlements []entitlements.Entitlement `json:"entitlements"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entitlements) != 1 || resp.Entitlements[0].UserID != "u1" {
		t.Fatalf("expected only u1's rows, got %#v", resp.Entitlements)
	}
}

type stubCache struct {
	list []entitlements.Entitlement
	puts int
}

func (c *stubCache) Get(ctx context.Context, userID string) ([]entitlements.Entitlement, bool, error) {
	if c.list != nil {
		return c.list, true, nil
	}
	return nil, false, nil
}

func (c *stubCache) Put(ctx context.Context, userID string, list []entitlements.Entitlement) error {
	c.puts++
	return nil
}

func TestEntitlementsGET_CacheHitSkipsReader(t *testing.T) {
	cached := []entitlements.Entitlement{{UserID: "u1", Name: "premium"}}
	cache := &stubCache{list: cached}
	r, _ := newReadRouter(t, cache)

	w := getEntitlements(r, billtesting.Token(testJWTSecret, "u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cache.puts != 0 {
		t.Fatalf("expected no cache fill on hit")
	}

	// Miss path fills the cache.
	cache.list = nil
	w = getEntitlements(r, billtesting.Token(testJWTSecret, "u1"))
	if w.Code != http.StatusOK || cache.puts != 1 {
		t.Fatalf("expected cache fill on miss, got code %d puts %d", w.Code, cache.puts)
	}
}
