package billgin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/billingkit/adapters/ginutil"
	"github.com/open-rails/billingkit/entitlements"
)

// EntitlementReader lists a user's entitlement rows.
type EntitlementReader interface {
	ListByUser(ctx context.Context, userID string) ([]entitlements.Entitlement, error)
}

// EntitlementCache is the read-through cache in front of the reader. Both
// methods are best-effort: a cache failure falls back to the reader.
type EntitlementCache interface {
	Get(ctx context.Context, userID string) ([]entitlements.Entitlement, bool, error)
	Put(ctx context.Context, userID string, list []entitlements.Entitlement) error
}

// HandleEntitlementsGET serves the authenticated user's entitlements for the
// dashboard and the mobile client's tier gating. Requires JWTAuth upstream.
func HandleEntitlementsGET(reader EntitlementReader, cache EntitlementCache, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLEntitlementsGet) {
			ginutil.TooMany(c)
			return
		}
		userID, ok := CurrentUserID(c)
		if !ok {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		ctx := c.Request.Context()

		if cache != nil {
			if list, hit, err := cache.Get(ctx, userID); err == nil && hit {
				c.JSON(http.StatusOK, gin.H{"entitlements": list})
				return
			}
		}

		list, err := reader.ListByUser(ctx, userID)
		if err != nil {
			ginutil.ServerError(c, "entitlements_lookup_failed")
			return
		}
		if list == nil {
			list = []entitlements.Entitlement{}
		}
		if cache != nil {
			_ = cache.Put(ctx, userID, list)
		}
		c.JSON(http.StatusOK, gin.H{"entitlements": list})
	}
}
