package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/jwt"
)

// Auth guards administrative endpoints with the shared-secret admin token.
type Auth struct {
	Verifier *jwt.AdminVerifier
}

// RequireAdmin ensures the request carries a valid admin bearer token.
func (m *Auth) RequireAdmin(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}
	if _, err := m.Verifier.Verify(parts[1]); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid admin token."})
		return
	}
	c.Next()
}
