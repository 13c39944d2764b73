package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/config"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/logger"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/utils"
)

const tenantIDKey = "tenantID"

// AuthMiddleware creates a middleware for JWT authentication. The token's
// user_id becomes the tenant for the rest of the request.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], cfg.JWTSecret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		c.Set(tenantIDKey, claims.UserID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// GetTenantIDFromContext returns the authenticated tenant.
func GetTenantIDFromContext(c *gin.Context) (uint, bool) {
	v, exists := c.Get(tenantIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
