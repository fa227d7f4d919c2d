// Package ginutil holds the small shared pieces of the gin adapter: response
// helpers, rate-limit bucket names, and the limiter interface the handlers
// gate through.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Rate-limit bucket names used by the handlers.
const (
	RLWebhook         = "webhook"
	RLEntitlementsGet = "entitlements_get"
)

// RateLimiter is satisfied by both ratelimit implementations. A nil limiter
// allows everything.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

// AllowNamed checks the caller's IP against the named bucket. Limiter errors
// fail open.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ok, err := rl.AllowNamed(bucket, c.ClientIP())
	if err != nil {
		return true
	}
	return ok
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
}

func TooMany(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
