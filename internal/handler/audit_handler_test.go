package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secaware/admin-api/internal/middleware"
	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/internal/service"
	appErrors "github.com/secaware/admin-api/pkg/errors"
)

type auditServiceMock struct {
	records       []models.AuditRecord
	pagination    *models.Pagination
	queryErr      error
	lastQuery     service.AuditQueryRequest
	getResp       *models.AuditRecord
	getErr        error
	stats         *models.AuditStats
	statsErr      error
	lastPeriod    string
	exportResp    *service.ExportResult
	exportErr     error
	lastFormat    string
	cleanupResp   *service.CleanupResult
	cleanupErr    error
	lastOlderThan int
}

func (m *auditServiceMock) Query(ctx context.Context, req service.AuditQueryRequest) ([]models.AuditRecord, *models.Pagination, error) {
	m.lastQuery = req
	return m.records, m.pagination, m.queryErr
}

func (m *auditServiceMock) Get(ctx context.Context, id string) (*models.AuditRecord, error) {
	return m.getResp, m.getErr
}

func (m *auditServiceMock) Timeline(ctx context.Context, actorID string, rawLimit string) ([]models.AuditRecord, error) {
	return m.records, m.queryErr
}

func (m *auditServiceMock) Stats(ctx context.Context, period string) (*models.AuditStats, error) {
	m.lastPeriod = period
	return m.stats, m.statsErr
}

func (m *auditServiceMock) Export(ctx context.Context, req service.AuditQueryRequest, format string, actor *models.JWTClaims, meta service.RequestMeta) (*service.ExportResult, error) {
	m.lastQuery = req
	m.lastFormat = format
	return m.exportResp, m.exportErr
}

func (m *auditServiceMock) Cleanup(ctx context.Context, olderThanDays int, actor *models.JWTClaims, meta service.RequestMeta) (*service.CleanupResult, error) {
	m.lastOlderThan = olderThanDays
	return m.cleanupResp, m.cleanupErr
}

func testContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	req.RemoteAddr = "10.0.0.1:52000"
	req.Header.Set("User-Agent", "go-test")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "actor-1", Role: models.RoleAdmin})
	return c, w
}

func TestAuditHandlerListPassesFilters(t *testing.T) {
	mockSvc := &auditServiceMock{pagination: &models.Pagination{Page: 1, Limit: 20}}
	h := NewAuditHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/admin/audit-logs?user=actor-1&severity=HIGH&limit=50", "")
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "actor-1", mockSvc.lastQuery.ActorID)
	assert.Equal(t, "HIGH", mockSvc.lastQuery.Severity)
	assert.Equal(t, "50", mockSvc.lastQuery.Limit)
}

func TestAuditHandlerListValidationError(t *testing.T) {
	mockSvc := &auditServiceMock{queryErr: appErrors.Validation("invalid audit log filters", map[string]string{"severity": "unknown"})}
	h := NewAuditHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/admin/audit-logs?severity=EXTREME", "")
	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditHandlerGetNotFound(t *testing.T) {
	mockSvc := &auditServiceMock{getErr: appErrors.ErrNotFound}
	h := NewAuditHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/admin/audit-logs/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditHandlerExportSetsDisposition(t *testing.T) {
	mockSvc := &auditServiceMock{exportResp: &service.ExportResult{
		Filename:    "audit-logs-2026-08-29.csv",
		ContentType: "text/csv",
		Body:        []byte("ID\n"),
	}}
	h := NewAuditHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/admin/audit-logs/export?format=csv", "")
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.lastFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit-logs-2026-08-29.csv")
}

func TestAuditHandlerExportDefaultsToCSV(t *testing.T) {
	mockSvc := &auditServiceMock{exportResp: &service.ExportResult{ContentType: "text/csv"}}
	h := NewAuditHandler(mockSvc)

	c, _ := testContext(t, http.MethodGet, "/admin/audit-logs/export", "")
	h.Export(c)

	assert.Equal(t, "csv", mockSvc.lastFormat)
}

func TestAuditHandlerStatsDefaultPeriod(t *testing.T) {
	mockSvc := &auditServiceMock{stats: &models.AuditStats{Period: "7d"}}
	h := NewAuditHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/admin/audit-logs/stats", "")
	h.Stats(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7d", mockSvc.lastPeriod)
}

func TestAuditHandlerCleanup(t *testing.T) {
	mockSvc := &auditServiceMock{cleanupResp: &service.CleanupResult{Removed: 5}}
	h := NewAuditHandler(mockSvc)

	c, w := testContext(t, http.MethodDelete, "/admin/audit-logs/cleanup", `{"olderThanDays":90}`)
	h.Cleanup(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 90, mockSvc.lastOlderThan)
}

func TestAuditHandlerCleanupMalformedBody(t *testing.T) {
	h := NewAuditHandler(&auditServiceMock{})

	c, w := testContext(t, http.MethodDelete, "/admin/audit-logs/cleanup", `{"olderThanDays":`)
	h.Cleanup(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
