package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/moderation/internal/pkg/response"
)

const ContextKeyAdmin = "is_admin"

// AdminAuth rejects requests that do not carry the configured admin token.
// An empty token disables the admin API entirely.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validAdminToken(token, extractToken(c)) {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyAdmin, true)
		c.Next()
	}
}

// OptionalAdmin marks the request as admin when the token is valid but never blocks.
func OptionalAdmin(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validAdminToken(token, extractToken(c)) {
			c.Set(ContextKeyAdmin, true)
		}
		c.Next()
	}
}

func validAdminToken(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// IsAuthenticated returns true if the request carries a valid admin token.
func IsAuthenticated(c *gin.Context) bool {
	return c.GetBool(ContextKeyAdmin)
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
