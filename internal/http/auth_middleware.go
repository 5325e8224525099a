package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visorry/flash-invite-sub001/internal/security"
)

// Context keys set by the auth middlewares.
const (
	// ContextUserIDKey carries the authenticated dashboard user's ID.
	ContextUserIDKey = "auth_user_id"
	// ContextUsernameKey carries the authenticated dashboard user's name.
	ContextUsernameKey = "auth_username"
	// ContextAdminIDKey carries the authenticated admin's ID.
	ContextAdminIDKey = "auth_admin_id"
	// ContextAdminUsernameKey carries the authenticated admin's name.
	ContextAdminUsernameKey = "auth_admin_username"
)

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserAuth authenticates dashboard requests with a user JWT.
func UserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, errParse := security.ParseToken(secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errParse.Error()})
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

// AdminAuth authenticates admin requests with an admin JWT.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, errParse := security.ParseAdminToken(secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errParse.Error()})
			return
		}
		c.Set(ContextAdminIDKey, claims.AdminID)
		c.Set(ContextAdminUsernameKey, claims.Username)
		c.Next()
	}
}

// UserID reads the authenticated user ID set by UserAuth.
func UserID(c *gin.Context) uint64 {
	value, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0
	}
	id, _ := value.(uint64)
	return id
}

// AdminID reads the authenticated admin ID set by AdminAuth.
func AdminID(c *gin.Context) uint64 {
	value, ok := c.Get(ContextAdminIDKey)
	if !ok {
		return 0
	}
	id, _ := value.(uint64)
	return id
}
