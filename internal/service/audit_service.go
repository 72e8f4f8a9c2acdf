package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/pkg/export"
	appErrors "github.com/secaware/admin-api/pkg/errors"
)

const (
	publicLimitMax   = 100
	defaultListLimit = 20
	topActorsLimit   = 10
)

// statsPeriods maps the accepted period tokens to their window size.
var statsPeriods = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

type auditRepository interface {
	FindByID(ctx context.Context, id string) (*models.AuditRecord, error)
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditRecord, int, error)
	TimelineByActor(ctx context.Context, actorID string, limit int) ([]models.AuditRecord, error)
	CountsByAction(ctx context.Context, since time.Time) ([]models.CountByKey, error)
	CountsByResource(ctx context.Context, since time.Time) ([]models.CountByKey, error)
	CountsBySeverity(ctx context.Context, since time.Time) ([]models.CountByKey, error)
	DailyTrend(ctx context.Context, since time.Time) ([]models.DailyCount, error)
	TopActors(ctx context.Context, since time.Time, limit int) ([]models.ActorActivity, error)
	SuccessTotals(ctx context.Context, since time.Time) (total, failed int, err error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type auditRecorder interface {
	Record(record *models.AuditRecord)
	WriteSync(ctx context.Context, record *models.AuditRecord) error
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AuditQueryRequest carries raw, unvalidated filter input from the HTTP
// layer. Parsing failures are itemized per field.
type AuditQueryRequest struct {
	ActorID    string
	ActionType string
	Resource   string
	Severity   string
	Status     string
	DateFrom   string
	DateTo     string
	Page       string
	Limit      string
	SortBy     string
	SortOrder  string
}

// RequestMeta identifies the caller for self-auditing operations.
type RequestMeta struct {
	IP        string
	UserAgent string
	SessionID string
}

// ExportResult is a rendered export ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// JSONExport is the envelope returned by format=json exports.
type JSONExport struct {
	ExportedAt   time.Time            `json:"exported_at"`
	Filters      map[string]string    `json:"filters"`
	TotalRecords int                  `json:"total_records"`
	Records      []models.AuditRecord `json:"records"`
}

// CleanupResult describes a completed retention purge.
type CleanupResult struct {
	Removed int64     `json:"removed"`
	Cutoff  time.Time `json:"cutoff"`
}

// AuditServiceConfig tunes query and export bounds.
type AuditServiceConfig struct {
	ExportMaxRecords int
	StatsCacheTTL    time.Duration
	RetentionMinDays int
}

// AuditService implements filtered retrieval, export, statistics and
// retention cleanup over the audit trail.
type AuditService struct {
	repo     auditRepository
	recorder auditRecorder
	cache    statsCache
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	cfg      AuditServiceConfig
	logger   *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditRepository, recorder auditRecorder, cache statsCache, cfg AuditServiceConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExportMaxRecords <= 0 {
		cfg.ExportMaxRecords = 10000
	}
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = 5 * time.Minute
	}
	return &AuditService{
		repo:     repo,
		recorder: recorder,
		cache:    cache,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		cfg:      cfg,
		logger:   logger,
	}
}

// ParseFilter validates raw query input into a typed filter. All
// problems are reported together, per field.
func (s *AuditService) ParseFilter(req AuditQueryRequest) (models.AuditFilter, error) {
	filter := models.AuditFilter{
		ActorID:   req.ActorID,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Page:      1,
		Limit:     defaultListLimit,
	}
	fields := map[string]string{}

	if req.ActionType != "" {
		at := models.ActionType(req.ActionType)
		if !at.Valid() {
			fields["actionType"] = fmt.Sprintf("unknown action type %q", req.ActionType)
		} else {
			filter.ActionType = &at
		}
	}
	if req.Resource != "" {
		res := models.ResourceType(req.Resource)
		if !res.Valid() {
			fields["resource"] = fmt.Sprintf("unknown resource %q", req.Resource)
		} else {
			filter.Resource = &res
		}
	}
	if req.Severity != "" {
		sev := models.Severity(req.Severity)
		if !sev.Valid() {
			fields["severity"] = fmt.Sprintf("unknown severity %q", req.Severity)
		} else {
			filter.Severity = &sev
		}
	}
	if req.Status != "" {
		st := models.AuditStatus(req.Status)
		if !st.Valid() {
			fields["status"] = fmt.Sprintf("unknown status %q", req.Status)
		} else {
			filter.Status = &st
		}
	}
	if req.DateFrom != "" {
		ts, err := parseDate(req.DateFrom)
		if err != nil {
			fields["dateFrom"] = "must be RFC 3339 or YYYY-MM-DD"
		} else {
			filter.DateFrom = &ts
		}
	}
	if req.DateTo != "" {
		ts, err := parseDate(req.DateTo)
		if err != nil {
			fields["dateTo"] = "must be RFC 3339 or YYYY-MM-DD"
		} else {
			filter.DateTo = &ts
		}
	}
	if req.Page != "" {
		page, err := strconv.Atoi(req.Page)
		if err != nil || page < 1 {
			fields["page"] = "must be a positive integer"
		} else {
			filter.Page = page
		}
	}
	if req.Limit != "" {
		limit, err := strconv.Atoi(req.Limit)
		if err != nil || limit < 1 {
			fields["limit"] = "must be a positive integer"
		} else {
			filter.Limit = limit
		}
	}

	if len(fields) > 0 {
		return models.AuditFilter{}, appErrors.Validation("invalid audit log filters", fields)
	}
	return filter, nil
}

// Query returns a filtered, paginated page of records. The public limit
// is capped; callers needing more go through Export.
func (s *AuditService) Query(ctx context.Context, req AuditQueryRequest) ([]models.AuditRecord, *models.Pagination, error) {
	filter, err := s.ParseFilter(req)
	if err != nil {
		return nil, nil, err
	}
	if filter.Limit > publicLimitMax {
		filter.Limit = publicLimitMax
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}

	return records, &models.Pagination{Page: filter.Page, Limit: filter.Limit, TotalCount: total}, nil
}

// Get returns one record by id.
func (s *AuditService) Get(ctx context.Context, id string) (*models.AuditRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit log not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit log")
	}
	return record, nil
}

// Timeline returns the most recent records for one actor, newest first.
func (s *AuditService) Timeline(ctx context.Context, actorID string, rawLimit string) ([]models.AuditRecord, error) {
	limit := defaultListLimit
	if rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 {
			return nil, appErrors.Validation("invalid timeline request", map[string]string{"limit": "must be a positive integer"})
		}
		limit = parsed
	}
	if limit > publicLimitMax {
		limit = publicLimitMax
	}

	records, err := s.repo.TimelineByActor(ctx, actorID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor timeline")
	}
	return records, nil
}

// Stats aggregates trail activity over the requested period, serving from
// the cache when possible.
func (s *AuditService) Stats(ctx context.Context, period string) (*models.AuditStats, error) {
	window, ok := statsPeriods[period]
	if !ok {
		return nil, appErrors.Validation("invalid stats request", map[string]string{"period": "must be one of 24h, 7d, 30d, 90d"})
	}

	cacheKey := "audit:stats:" + period
	if s.cache != nil {
		var cached models.AuditStats
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	now := time.Now().UTC()
	since := now.Add(-window)

	byAction, err := s.repo.CountsByAction(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate audit stats")
	}
	byResource, err := s.repo.CountsByResource(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate audit stats")
	}
	bySeverity, err := s.repo.CountsBySeverity(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate audit stats")
	}
	trend, err := s.repo.DailyTrend(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate audit stats")
	}
	topActors, err := s.repo.TopActors(ctx, since, topActorsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate audit stats")
	}
	total, failed, err := s.repo.SuccessTotals(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate audit stats")
	}

	successRate := 1.0
	if total > 0 {
		successRate = float64(total-failed) / float64(total)
	}

	stats := &models.AuditStats{
		Period:      period,
		Total:       total,
		ByAction:    byAction,
		ByResource:  byResource,
		BySeverity:  bySeverity,
		DailyTrend:  trend,
		TopActors:   topActors,
		SuccessRate: successRate,
		GeneratedAt: now,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.cfg.StatsCacheTTL); err != nil {
			s.logger.Warn("failed to cache audit stats", zap.Error(err))
		}
	}

	return stats, nil
}

// Export renders the filtered trail unpaged up to the hard ceiling. Each
// invocation records a DATA_EXPORT entry carrying the filters used and
// the resulting record count.
func (s *AuditService) Export(ctx context.Context, req AuditQueryRequest, format string, actor *models.JWTClaims, meta RequestMeta) (*ExportResult, error) {
	filter, err := s.ParseFilter(req)
	if err != nil {
		return nil, err
	}
	filter.Page = 1
	filter.Limit = s.cfg.ExportMaxRecords

	records, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export audit logs")
	}

	exportedAt := time.Now().UTC()
	filters := filterLabels(req)

	var result *ExportResult
	switch format {
	case "csv":
		payload, err := s.csv.Render(auditDataset(records))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		result = &ExportResult{
			Filename:    fmt.Sprintf("audit-logs-%s.csv", exportedAt.Format("2006-01-02")),
			ContentType: "text/csv",
			Body:        payload,
		}
	case "pdf":
		payload, err := s.pdf.Render(auditDataset(records), "Audit Log Export")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		result = &ExportResult{
			Filename:    fmt.Sprintf("audit-logs-%s.pdf", exportedAt.Format("2006-01-02")),
			ContentType: "application/pdf",
			Body:        payload,
		}
	case "json":
		envelope := JSONExport{
			ExportedAt:   exportedAt,
			Filters:      filters,
			TotalRecords: len(records),
			Records:      records,
		}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render json export")
		}
		result = &ExportResult{
			Filename:    fmt.Sprintf("audit-logs-%s.json", exportedAt.Format("2006-01-02")),
			ContentType: "application/json",
			Body:        payload,
		}
	default:
		return nil, appErrors.Validation("invalid export request", map[string]string{"format": "must be csv, json or pdf"})
	}

	s.recordExport(actor, meta, format, filters, len(records))

	return result, nil
}

// Cleanup bulk-deletes records older than the cutoff and then writes one
// record describing the purge. Unlike normal trail writes, failures here
// surface to the administrative caller.
func (s *AuditService) Cleanup(ctx context.Context, olderThanDays int, actor *models.JWTClaims, meta RequestMeta) (*CleanupResult, error) {
	minDays := s.cfg.RetentionMinDays
	if minDays < 1 {
		minDays = 1
	}
	if olderThanDays < minDays {
		return nil, appErrors.Validation("invalid cleanup request", map[string]string{
			"olderThanDays": fmt.Sprintf("must be at least %d", minDays),
		})
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge audit logs")
	}

	// Written after the delete so the purge record cannot delete itself.
	summary, _ := json.Marshal(map[string]interface{}{"removed": removed, "cutoff": cutoff})
	purgeRecord := &models.AuditRecord{
		ActorID:      &actor.UserID,
		Action:       "Audit log retention cleanup",
		ActionType:   models.ActionDelete,
		Resource:     models.ResourceSystem,
		Details:      fmt.Sprintf("Purged %d audit records older than %s", removed, cutoff.Format(time.RFC3339)),
		ChangesAfter: summary,
		Severity:     models.SeverityCritical,
		Status:       models.StatusSuccess,
		Metadata: models.AuditMetadata{
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Method:    "DELETE",
			Endpoint:  "/admin/audit-logs/cleanup",
			SessionID: meta.SessionID,
		},
	}
	if err := s.recorder.WriteSync(ctx, purgeRecord); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "purge completed but could not be recorded")
	}

	return &CleanupResult{Removed: removed, Cutoff: cutoff}, nil
}

func (s *AuditService) recordExport(actor *models.JWTClaims, meta RequestMeta, format string, filters map[string]string, count int) {
	var actorID *string
	if actor != nil {
		actorID = &actor.UserID
	}
	detail, _ := json.Marshal(map[string]interface{}{"record_count": count, "format": format, "filters": filters})

	s.recorder.Record(&models.AuditRecord{
		ActorID:      actorID,
		Action:       "Exported audit logs",
		ActionType:   models.ActionDataExport,
		Resource:     models.ResourceSystem,
		Details:      fmt.Sprintf("Exported %d audit records as %s", count, format),
		ChangesAfter: detail,
		Severity:     models.SeverityMedium,
		Status:       models.StatusSuccess,
		Metadata: models.AuditMetadata{
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Method:    "GET",
			Endpoint:  "/admin/audit-logs/export",
			SessionID: meta.SessionID,
		},
	})
}

var csvHeaders = []string{"ID", "Time", "Actor", "Action Type", "Resource", "Resource ID", "Severity", "Status", "Method", "Endpoint", "Response Status", "IP Address", "Details"}

func auditDataset(records []models.AuditRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		actor := ""
		if rec.ActorEmail != nil {
			actor = *rec.ActorEmail
		} else if rec.ActorID != nil {
			actor = *rec.ActorID
		}
		resourceID := ""
		if rec.ResourceID != nil {
			resourceID = *rec.ResourceID
		}
		rows = append(rows, map[string]string{
			"ID":              rec.ID,
			"Time":            rec.CreatedAt.UTC().Format(time.RFC3339),
			"Actor":           actor,
			"Action Type":     string(rec.ActionType),
			"Resource":        string(rec.Resource),
			"Resource ID":     resourceID,
			"Severity":        string(rec.Severity),
			"Status":          string(rec.Status),
			"Method":          rec.Metadata.Method,
			"Endpoint":        rec.Metadata.Endpoint,
			"Response Status": strconv.Itoa(rec.Metadata.ResponseStatus),
			"IP Address":      rec.Metadata.IPAddress,
			"Details":         rec.Details,
		})
	}
	return export.Dataset{Headers: csvHeaders, Rows: rows}
}

func filterLabels(req AuditQueryRequest) map[string]string {
	labels := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			labels[key] = value
		}
	}
	set("user", req.ActorID)
	set("actionType", req.ActionType)
	set("resource", req.Resource)
	set("severity", req.Severity)
	set("status", req.Status)
	set("dateFrom", req.DateFrom)
	set("dateTo", req.DateTo)
	return labels
}

// parseDate accepts RFC 3339 timestamps or bare dates.
func parseDate(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
