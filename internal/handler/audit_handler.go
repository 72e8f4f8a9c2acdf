package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/internal/service"
	appErrors "github.com/secaware/admin-api/pkg/errors"
	"github.com/secaware/admin-api/pkg/response"
)

type auditService interface {
	Query(ctx context.Context, req service.AuditQueryRequest) ([]models.AuditRecord, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AuditRecord, error)
	Timeline(ctx context.Context, actorID string, rawLimit string) ([]models.AuditRecord, error)
	Stats(ctx context.Context, period string) (*models.AuditStats, error)
	Export(ctx context.Context, req service.AuditQueryRequest, format string, actor *models.JWTClaims, meta service.RequestMeta) (*service.ExportResult, error)
	Cleanup(ctx context.Context, olderThanDays int, actor *models.JWTClaims, meta service.RequestMeta) (*service.CleanupResult, error)
}

// AuditHandler exposes the administrative audit trail endpoints.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

func queryFromRequest(c *gin.Context) service.AuditQueryRequest {
	return service.AuditQueryRequest{
		ActorID:    c.Query("user"),
		ActionType: c.Query("actionType"),
		Resource:   c.Query("resource"),
		Severity:   c.Query("severity"),
		Status:     c.Query("status"),
		DateFrom:   c.Query("dateFrom"),
		DateTo:     c.Query("dateTo"),
		Page:       c.Query("page"),
		Limit:      c.Query("limit"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	}
}

// List godoc
// @Summary List audit logs
// @Description List audit records with filtering and pagination
// @Tags Audit
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Param user query string false "Actor ID filter"
// @Param actionType query string false "Action type filter"
// @Param resource query string false "Resource filter"
// @Param severity query string false "Severity filter"
// @Param status query string false "Status filter"
// @Param dateFrom query string false "Inclusive lower created_at bound"
// @Param dateTo query string false "Inclusive upper created_at bound"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	records, pagination, err := h.service.Query(c.Request.Context(), queryFromRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get audit log
// @Tags Audit
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/audit-logs/{id} [get]
func (h *AuditHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Export godoc
// @Summary Export audit logs
// @Description Download the filtered trail as CSV, JSON or PDF
// @Tags Audit
// @Produce json
// @Param format query string true "csv, json or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/audit-logs/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	result, err := h.service.Export(c.Request.Context(), queryFromRequest(c), format, claimsFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Body)
}

// Stats godoc
// @Summary Audit activity statistics
// @Tags Audit
// @Produce json
// @Param period query string false "24h, 7d, 30d or 90d"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/audit-logs/stats [get]
func (h *AuditHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.DefaultQuery("period", "7d"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// Timeline godoc
// @Summary Per-actor activity timeline
// @Tags Audit
// @Produce json
// @Param userId path string true "Actor ID"
// @Param limit query int false "Maximum records (max 100)"
// @Success 200 {object} response.Envelope
// @Router /admin/audit-logs/user/{userId}/timeline [get]
func (h *AuditHandler) Timeline(c *gin.Context) {
	records, err := h.service.Timeline(c.Request.Context(), c.Param("userId"), c.Query("limit"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// CleanupRequest is the body of a retention purge call.
type CleanupRequest struct {
	OlderThanDays int `json:"olderThanDays"`
}

// Cleanup godoc
// @Summary Purge audit logs older than a cutoff
// @Description Bulk retention cleanup; the purge itself is audited
// @Tags Audit
// @Accept json
// @Produce json
// @Param payload body CleanupRequest true "Retention cutoff"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/audit-logs/cleanup [delete]
func (h *AuditHandler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation("invalid cleanup request", map[string]string{"olderThanDays": "must be an integer"}))
		return
	}

	result, err := h.service.Cleanup(c.Request.Context(), req.OlderThanDays, claimsFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
