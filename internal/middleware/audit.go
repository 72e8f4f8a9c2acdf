package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secaware/admin-api/internal/audit"
	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/pkg/middleware/requestid"
)

// Audit log levels supported by the interceptor.
const (
	AuditLogAll          = "all"
	AuditLogAdminOnly    = "admin-only"
	AuditLogHighRiskOnly = "high-risk-only"
)

// AuditPolicy configures one interceptor instance. Policies are plain
// values so differently-configured interceptors can coexist.
type AuditPolicy struct {
	LogLevel       string
	ExcludePaths   []string
	ExcludeMethods []string
}

// Audit intercepts the request/response cycle and records an audit entry
// after the response has completed. It observes the final status without
// ever altering the response, and hands the write to the recorder's
// background queue so the caller never waits on storage.
func Audit(rec *audit.Recorder, policy AuditPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		if excludedPath(policy, path) {
			c.Next()
			return
		}
		if excludedMethod(policy, method) && !audit.IsAdminPath(path) {
			c.Next()
			return
		}

		payload := capturePayload(c)
		start := time.Now()

		c.Next()

		// The client went away before a final status was known; skip
		// rather than fabricate an outcome.
		if c.Request.Context().Err() != nil {
			return
		}

		claims := claimsFromContext(c)
		if !shouldLog(policy.LogLevel, claims, method, path) {
			return
		}

		// Requests that never resolved an actor belong to the auth
		// collaborator's own trail entries.
		if claims == nil {
			return
		}

		classification := audit.Classify(method, path, c.Writer.Status())

		record := &models.AuditRecord{
			ActorID:    &claims.UserID,
			Action:     classification.Details,
			ActionType: classification.ActionType,
			Resource:   classification.Resource,
			ResourceID: classification.ResourceID,
			Details:    classification.Details,
			Severity:   classification.Severity,
			Status:     classification.Status,
			Metadata: models.AuditMetadata{
				IPAddress:       c.ClientIP(),
				UserAgent:       c.GetHeader("User-Agent"),
				Method:          method,
				Endpoint:        path,
				ResponseStatus:  c.Writer.Status(),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
				SessionID:       requestid.Value(c),
			},
		}
		if payload != nil {
			if snapshot, err := json.Marshal(audit.Redact(payload)); err == nil {
				record.ChangesAfter = snapshot
			}
		}

		rec.Record(record)
	}
}

func excludedPath(policy AuditPolicy, path string) bool {
	for _, excluded := range policy.ExcludePaths {
		if strings.Contains(path, excluded) {
			return true
		}
	}
	return false
}

func excludedMethod(policy AuditPolicy, method string) bool {
	for _, excluded := range policy.ExcludeMethods {
		if strings.EqualFold(excluded, method) {
			return true
		}
	}
	return false
}

func shouldLog(logLevel string, claims *models.JWTClaims, method, path string) bool {
	switch logLevel {
	case AuditLogAdminOnly:
		return claims != nil && claims.Role.IsAdmin()
	case AuditLogHighRiskOnly:
		return audit.IsMutating(method) || audit.IsAdminPath(path) ||
			strings.Contains(path, "users") || strings.Contains(path, "policies")
	default:
		return true
	}
}

// capturePayload reads and restores the request body of mutating
// requests so a redacted snapshot can accompany the record.
func capturePayload(c *gin.Context) map[string]interface{} {
	if !audit.IsMutating(c.Request.Method) || c.Request.Body == nil {
		return nil
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	if len(raw) == 0 {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
