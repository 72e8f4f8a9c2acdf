package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secaware/admin-api/internal/audit"
	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/pkg/middleware/requestid"
)

// HighRisk marks specific mutating routes that must always reach the
// trail at maximum severity, regardless of the interceptor's log level.
// It follows the same write-after-response, never-block, never-fail
// discipline as the interceptor.
func HighRisk(rec *audit.Recorder, action string, resource models.ResourceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method
		start := time.Now()

		c.Next()

		if c.Request.Context().Err() != nil {
			return
		}

		claims := claimsFromContext(c)
		if claims == nil {
			return
		}

		classification := audit.Classify(method, path, c.Writer.Status())

		rec.Record(&models.AuditRecord{
			ActorID:    &claims.UserID,
			Action:     action,
			ActionType: classification.ActionType,
			Resource:   resource,
			ResourceID: classification.ResourceID,
			Details:    classification.Details,
			Severity:   models.SeverityCritical,
			Status:     classification.Status,
			Tags:       []string{"high-risk"},
			Metadata: models.AuditMetadata{
				IPAddress:       c.ClientIP(),
				UserAgent:       c.GetHeader("User-Agent"),
				Method:          method,
				Endpoint:        path,
				ResponseStatus:  c.Writer.Status(),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
				SessionID:       requestid.Value(c),
			},
		})
	}
}
