// Package middleware contains Gin middleware functions.
// Middleware runs before the route handler and calls c.Next() to proceed
// or c.Abort() to stop the chain.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware.
const (
	APIKeyContextKey = "api_key"
	TenantContextKey = "tenant_id"
)

// TenantKeyAuth returns middleware that resolves the calling tenant from its
// API key. The key is read from the X-API-Key header or the api_key query
// param; downstream handlers read the tenant with TenantID.
func TenantKeyAuth(tenantsByKey map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := apiKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		tenant, ok := tenantsByKey[key]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Set(TenantContextKey, tenant)
		c.Next()
	}
}

// AdminKeyAuth returns middleware that validates admin API keys.
// Admin requests act on shared data, so no tenant is attached.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	keySet := make(map[string]struct{}, len(adminKeys))
	for _, k := range adminKeys {
		keySet[k] = struct{}{}
	}

	return func(c *gin.Context) {
		key := apiKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing admin API key",
			})
			return
		}

		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid admin API key",
			})
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

// TenantID returns the tenant resolved by TenantKeyAuth, or "" if none ran.
func TenantID(c *gin.Context) string {
	return c.GetString(TenantContextKey)
}

func apiKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}
