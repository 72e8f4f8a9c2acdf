package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/internal/service"
	appErrors "github.com/secaware/admin-api/pkg/errors"
	"github.com/secaware/admin-api/pkg/middleware/requestid"
	"github.com/secaware/admin-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token. A request that
// presents an invalid credential is rejected and recorded as a failed,
// actor-less sign-in attempt.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			authService.RecordRejectedToken(c.Request.Method, c.Request.URL.Path, service.RequestMeta{
				IP:        c.ClientIP(),
				UserAgent: c.GetHeader("User-Agent"),
				SessionID: requestid.Value(c),
			})
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
