package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"training-backend/internal/shared/server/respond"
)

const (
	ownerIDKey   = "ownerId"
	accountIDKey = "accountId"
)

// Identity resolves the caller identity forwarded by the auth gateway and
// stores it in context. Authentication itself happens upstream; this core
// only requires that both identifiers are present.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		path := c.Request.URL.Path
		if strings.HasSuffix(path, "/health") || strings.HasSuffix(path, "/metrics") {
			c.Next()
			return
		}

		ownerID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		accountID := strings.TrimSpace(c.GetHeader("X-Account-Id"))
		if ownerID == "" || accountID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(ownerIDKey, ownerID)
		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// OwnerIDFromContext fetches the owner ID set by the identity middleware.
func OwnerIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(ownerIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// AccountIDFromContext fetches the account ID set by the identity middleware.
func AccountIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(accountIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
