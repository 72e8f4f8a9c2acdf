package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/secaware/admin-api/internal/middleware"
	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/internal/service"
	"github.com/secaware/admin-api/pkg/middleware/requestid"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		SessionID: requestid.Value(c),
	}
}
