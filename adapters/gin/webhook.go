package billgin

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/billingkit/adapters/ginutil"
	core "github.com/open-rails/billingkit/core"
)

// HandleWebhookPOST receives one provider delivery and runs the reconciler.
// Status codes follow the provider's retry contract: 200 on success (including
// duplicate replays), 400 on a body without an event, 500 on store or
// procedure failure so the sender redelivers.
func HandleWebhookPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLWebhook) {
			ginutil.TooMany(c)
			return
		}
		if !authorizedSender(c, svc.Config().WebhookSecret) {
			ginutil.Unauthorized(c, "invalid_webhook_authorization")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			ginutil.BadRequest(c, "unreadable_body")
			return
		}

		out, err := svc.Process(c.Request.Context(), body)
		if err != nil {
			if errors.Is(err, core.ErrMissingEvent) {
				ginutil.BadRequest(c, "missing_event")
				return
			}
			// StoreError and ProcedureError both map to 500; the upstream
			// sender retries on any non-2xx.
			ginutil.ServerError(c, "processing_failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": out.Duplicate})
	}
}

// authorizedSender checks the shared-secret Authorization header when one is
// configured. Empty secret keeps the open behavior of deployments that trust
// callers at the network level.
func authorizedSender(c *gin.Context, secret string) bool {
	if secret == "" {
		return true
	}
	got := c.GetHeader("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
