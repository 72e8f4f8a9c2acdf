package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secaware/admin-api/internal/audit"
	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/pkg/config"
)

type trailMock struct {
	mu      sync.Mutex
	records []*models.AuditRecord
}

func (m *trailMock) Insert(ctx context.Context, record *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *trailMock) all() []*models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditRecord(nil), m.records...)
}

func newTestRecorder(t *testing.T) (*audit.Recorder, *trailMock) {
	trail := &trailMock{}
	rec := audit.NewRecorder(trail, config.AuditConfig{
		QueueWorkers: 1,
		QueueBuffer:  16,
		QueueRetries: 1,
		DrainTimeout: time.Second,
	}, nil, nil)
	rec.Start(context.Background())
	return rec, trail
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func adminTestClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "actor-1", Role: models.RoleAdmin, Email: "admin@example.com"}
}

func perform(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("User-Agent", "go-test")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuditRecordsExactlyOneEntry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	router := gin.New()
	router.Use(withClaims(adminTestClaims()))
	router.Use(Audit(rec, AuditPolicy{LogLevel: AuditLogAll}))
	router.GET("/api/v1/projects", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(router, http.MethodGet, "/api/v1/projects", "")
	require.Equal(t, http.StatusOK, w.Code)

	rec.Stop()
	records := trail.all()
	require.Len(t, records, 1)
	entry := records[0]
	assert.Equal(t, models.ActionRead, entry.ActionType)
	assert.Equal(t, models.ResourceProject, entry.Resource)
	assert.Equal(t, http.StatusOK, entry.Metadata.ResponseStatus)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "actor-1", *entry.ActorID)
}

func TestAuditSkipsExcludedPathsAndMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	router := gin.New()
	router.Use(withClaims(adminTestClaims()))
	router.Use(Audit(rec, AuditPolicy{
		LogLevel:       AuditLogAll,
		ExcludePaths:   []string{"/health"},
		ExcludeMethods: []string{"OPTIONS"},
	}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.OPTIONS("/api/v1/projects", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	perform(router, http.MethodGet, "/health", "")
	perform(router, http.MethodOptions, "/api/v1/projects", "")

	rec.Stop()
	assert.Empty(t, trail.all())
}

func TestAuditExcludedMethodStillLogsAdminPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	router := gin.New()
	router.Use(withClaims(adminTestClaims()))
	router.Use(Audit(rec, AuditPolicy{LogLevel: AuditLogAll, ExcludeMethods: []string{"OPTIONS"}}))
	router.OPTIONS("/api/v1/admin/audit-logs", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	perform(router, http.MethodOptions, "/api/v1/admin/audit-logs", "")

	rec.Stop()
	assert.Len(t, trail.all(), 1)
}

func TestAuditSkipsAnonymousRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	router := gin.New()
	router.Use(Audit(rec, AuditPolicy{LogLevel: AuditLogAll}))
	router.GET("/api/v1/projects", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(router, http.MethodGet, "/api/v1/projects", "")

	rec.Stop()
	assert.Empty(t, trail.all())
}

func TestAuditAdminOnlyLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	employee := &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee}

	router := gin.New()
	router.Use(withClaims(employee))
	router.Use(Audit(rec, AuditPolicy{LogLevel: AuditLogAdminOnly}))
	router.GET("/api/v1/projects", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(router, http.MethodGet, "/api/v1/projects", "")

	rec.Stop()
	assert.Empty(t, trail.all())
}

func TestAuditHighRiskOnlyLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	router := gin.New()
	router.Use(withClaims(adminTestClaims()))
	router.Use(Audit(rec, AuditPolicy{LogLevel: AuditLogHighRiskOnly}))
	router.GET("/api/v1/reports", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/reports", func(c *gin.Context) { c.Status(http.StatusCreated) })

	// Plain reads outside sensitive surfaces are not logged at this level.
	perform(router, http.MethodGet, "/api/v1/reports", "")
	perform(router, http.MethodPost, "/api/v1/reports", "")

	rec.Stop()
	records := trail.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionCreate, records[0].ActionType)
}

func TestAuditRedactsMutatingPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	var seenBody string
	router := gin.New()
	router.Use(withClaims(adminTestClaims()))
	router.Use(Audit(rec, AuditPolicy{LogLevel: AuditLogAll}))
	router.POST("/api/v1/users", func(c *gin.Context) {
		raw, _ := c.GetRawData()
		seenBody = string(raw)
		c.Status(http.StatusCreated)
	})

	body := `{"email":"new@example.com","password":"hunter2"}`
	perform(router, http.MethodPost, "/api/v1/users", body)

	// The handler still sees the original body.
	assert.JSONEq(t, body, seenBody)

	rec.Stop()
	records := trail.all()
	require.Len(t, records, 1)
	snapshot := string(records[0].ChangesAfter)
	assert.Contains(t, snapshot, audit.RedactionMarker)
	assert.NotContains(t, snapshot, "hunter2")
	assert.Contains(t, snapshot, "new@example.com")
}

func TestAuditCapturesFailureStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	router := gin.New()
	router.Use(withClaims(adminTestClaims()))
	router.Use(Audit(rec, AuditPolicy{LogLevel: AuditLogAll}))
	router.DELETE("/api/v1/tasks/:id", func(c *gin.Context) { c.Status(http.StatusConflict) })

	perform(router, http.MethodDelete, "/api/v1/tasks/507f1f77bcf86cd799439011", "")

	rec.Stop()
	records := trail.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusFailed, records[0].Status)
	assert.Equal(t, models.SeverityHigh, records[0].Severity)
	require.NotNil(t, records[0].ResourceID)
	assert.Equal(t, "507f1f77bcf86cd799439011", *records[0].ResourceID)
}

func TestHighRiskAlwaysCritical(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec, trail := newTestRecorder(t)

	router := gin.New()
	router.Use(withClaims(adminTestClaims()))
	router.DELETE("/api/v1/admin/audit-logs/cleanup",
		HighRisk(rec, "Retention cleanup requested", models.ResourceSystem),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(router, http.MethodDelete, "/api/v1/admin/audit-logs/cleanup", "")

	rec.Stop()
	records := trail.all()
	require.Len(t, records, 1)
	entry := records[0]
	assert.Equal(t, models.SeverityCritical, entry.Severity)
	assert.Equal(t, "Retention cleanup requested", entry.Action)
	assert.Equal(t, []string{"high-risk"}, []string(entry.Tags))
}
