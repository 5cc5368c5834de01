package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"service-order-attachments/internal/pkg/jwtutil"
	"service-order-attachments/internal/transport/http/response"
)

const (
	ContextOperatorIDKey = "operator_id"
	ContextUsernameKey   = "username"
)

func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextOperatorIDKey, claims.OperatorID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}
