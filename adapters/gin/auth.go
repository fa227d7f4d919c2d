package billgin

import (
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/open-rails/billingkit/adapters/ginutil"
)

const ctxUserIDKey = "billingkit.user_id"

// JWTAuth verifies HS256 bearer tokens issued by the hosted auth backend and
// puts the subject claim in the request context. Dashboard and mobile clients
// call the read API with the same token they use against the backend.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			ginutil.Unauthorized(c, "missing_token")
			c.Abort()
			return
		}
		tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !tok.Valid {
			ginutil.Unauthorized(c, "invalid_token")
			c.Abort()
			return
		}
		sub, err := tok.Claims.GetSubject()
		if err != nil || sub == "" {
			ginutil.Unauthorized(c, "invalid_token")
			c.Abort()
			return
		}
		c.Set(ctxUserIDKey, sub)
		c.Next()
	}
}

// CurrentUserID returns the authenticated subject set by JWTAuth.
func CurrentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
