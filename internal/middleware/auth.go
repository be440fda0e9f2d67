package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meetuply/internal/pkg/jwt"
)

// Auth validates the bearer token and puts user_id into the context.
func Auth(tokens *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "AUTH_MISSING", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortUnauthorized(c, "AUTH_INVALID", "Authorization header must be 'Bearer <token>'")
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "AUTH_INVALID", "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}
