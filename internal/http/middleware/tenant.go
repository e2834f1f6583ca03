package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/tenant"
)

const ginTenantKey = "tenantSlug"

type tenantContextKey struct{}

// Tenant resolves the canonical tenant from the X-Tenant-ID header and
// stores it in Gin and request contexts.
func Tenant(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := strings.TrimSpace(c.Request.Header.Get("X-Tenant-ID"))
		canonical := resolver.Canonical(slug)
		if canonical == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_tenant",
				"error_description": "X-Tenant-ID header required.",
			})
			return
		}

		ctx := context.WithValue(c.Request.Context(), tenantContextKey{}, canonical)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginTenantKey, canonical)

		c.Next()
	}
}

// GetTenant exposes the canonical tenant to handlers.
func GetTenant(c *gin.Context) (string, bool) {
	value, ok := c.Get(ginTenantKey)
	if !ok {
		return "", false
	}
	slug, ok := value.(string)
	return slug, ok
}

// TenantFromContext extracts the canonical tenant from a standard context.
func TenantFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(tenantContextKey{})
	if value == nil {
		return "", false
	}
	slug, ok := value.(string)
	return slug, ok
}
