package billgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS headers required by the webhook surface: wildcard origin plus the
// client headers the hosted-backend SDKs send.
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// CORSMiddleware sets the CORS headers on every response and answers OPTIONS
// preflights with 200/"ok" regardless of body contents.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", corsAllowOrigin)
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		if c.Request.Method == http.MethodOptions {
			c.String(http.StatusOK, "ok")
			c.Abort()
			return
		}
		c.Next()
	}
}
