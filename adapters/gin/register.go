package billgin

import (
	"github.com/gin-gonic/gin"

	"github.com/open-rails/billingkit/adapters/ginutil"
	core "github.com/open-rails/billingkit/core"
)

// Options wires the optional collaborators of the HTTP surface.
type Options struct {
	// JWTSecret guards the read API. Empty disables the read routes entirely
	// rather than exposing them unauthenticated.
	JWTSecret string
	Reader    EntitlementReader
	Cache     EntitlementCache
	Limiter   ginutil.RateLimiter
}

// RegisterAPI mounts the billing routes on the engine:
//
//	POST   /billing/webhooks/revenuecat   provider deliveries
//	OPTIONS <same>                        CORS preflight, 200/"ok"
//	GET    /billing/entitlements          authenticated read API
func RegisterAPI(r *gin.Engine, svc *core.Service, opts Options) {
	grp := r.Group("/billing")
	grp.Use(CORSMiddleware())

	grp.POST("/webhooks/revenuecat", HandleWebhookPOST(svc, opts.Limiter))
	grp.OPTIONS("/webhooks/revenuecat", func(c *gin.Context) {})

	if opts.JWTSecret != "" && opts.Reader != nil {
		grp.GET("/entitlements", JWTAuth(opts.JWTSecret), HandleEntitlementsGET(opts.Reader, opts.Cache, opts.Limiter))
	}
}
