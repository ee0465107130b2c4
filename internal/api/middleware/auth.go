package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/integrity-spine/spine/pkg/auth"
)

// MeshAuth validates the internal mesh-auth bearer token on every request
// and sets user_id/user_role on the gin context for the handler layer's
// common.GetUserID/ExtractUserContext helpers.
func MeshAuth(svc *auth.MeshAuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":      "MISSING_TOKEN",
				"message":    "Authorization token required",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		claims, err := svc.ValidateToken(tokenString)
		if err != nil {
			logger.Debug("mesh token validation failed", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":      "INVALID_TOKEN",
				"message":    "Token validation failed",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
