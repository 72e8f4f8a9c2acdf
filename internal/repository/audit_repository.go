package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/secaware/admin-api/internal/models"
)

// auditColumns is the shared select list; metadata columns are aliased so
// sqlx can hydrate the nested AuditMetadata struct.
const auditColumns = `a.id, a.actor_id, u.email AS actor_email, a.action, a.action_type, a.resource, a.resource_id,
	a.details, a.changes_before, a.changes_after, a.severity, a.status, a.tags, a.created_at,
	a.ip_address AS "metadata.ip_address", a.user_agent AS "metadata.user_agent",
	a.method AS "metadata.method", a.endpoint AS "metadata.endpoint",
	a.response_status AS "metadata.response_status", a.execution_time_ms AS "metadata.execution_time_ms",
	a.session_id AS "metadata.session_id"`

// AuditRepository provides append-only persistence for audit records.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one record. CreatedAt is stamped here, at persistence
// time, and is never mutated afterwards.
func (r *AuditRepository) Insert(ctx context.Context, record *models.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO audit_logs (id, actor_id, action, action_type, resource, resource_id, details,
		changes_before, changes_after, ip_address, user_agent, method, endpoint, response_status,
		execution_time_ms, session_id, severity, status, tags, created_at)
		VALUES (:id, :actor_id, :action, :action_type, :resource, :resource_id, :details,
		:changes_before, :changes_after, :metadata.ip_address, :metadata.user_agent, :metadata.method,
		:metadata.endpoint, :metadata.response_status, :metadata.execution_time_ms, :metadata.session_id,
		:severity, :status, :tags, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// FindByID returns a record by identifier.
func (r *AuditRepository) FindByID(ctx context.Context, id string) (*models.AuditRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id WHERE a.id = $1 LIMIT 1`, auditColumns)
	var record models.AuditRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find audit record by id: %w", err)
	}
	return &record, nil
}

// List returns records matching the filter with total count. Filters are
// AND-combined; date bounds are inclusive on created_at.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditRecord, int, error) {
	baseQuery := `FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ActorID != "" {
		conditions = append(conditions, fmt.Sprintf("a.actor_id = $%d", len(args)+1))
		args = append(args, filter.ActorID)
	}
	if filter.ActionType != nil {
		conditions = append(conditions, fmt.Sprintf("a.action_type = $%d", len(args)+1))
		args = append(args, string(*filter.ActionType))
	}
	if filter.Resource != nil {
		conditions = append(conditions, fmt.Sprintf("a.resource = $%d", len(args)+1))
		args = append(args, string(*filter.Resource))
	}
	if filter.Severity != nil {
		conditions = append(conditions, fmt.Sprintf("a.severity = $%d", len(args)+1))
		args = append(args, string(*filter.Severity))
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, string(*filter.Status))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at":  true,
		"severity":    true,
		"action_type": true,
		"resource":    true,
		"status":      true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY a.%s %s LIMIT %d OFFSET %d", auditColumns, baseQuery, sortBy, sortOrder, limit, offset)

	var records []models.AuditRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	return records, total, nil
}

// TimelineByActor returns the most recent records for one actor,
// newest first.
func (r *AuditRepository) TimelineByActor(ctx context.Context, actorID string, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id
		WHERE a.actor_id = $1 ORDER BY a.created_at DESC LIMIT $2`, auditColumns)

	var records []models.AuditRecord
	if err := r.db.SelectContext(ctx, &records, query, actorID, limit); err != nil {
		return nil, fmt.Errorf("actor timeline: %w", err)
	}
	return records, nil
}

// CountsByAction groups record counts by action type since the given time.
func (r *AuditRepository) CountsByAction(ctx context.Context, since time.Time) ([]models.CountByKey, error) {
	return r.countsBy(ctx, "action_type", since)
}

// CountsByResource groups record counts by resource since the given time.
func (r *AuditRepository) CountsByResource(ctx context.Context, since time.Time) ([]models.CountByKey, error) {
	return r.countsBy(ctx, "resource", since)
}

// CountsBySeverity groups record counts by severity since the given time.
func (r *AuditRepository) CountsBySeverity(ctx context.Context, since time.Time) ([]models.CountByKey, error) {
	return r.countsBy(ctx, "severity", since)
}

func (r *AuditRepository) countsBy(ctx context.Context, column string, since time.Time) ([]models.CountByKey, error) {
	query := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count FROM audit_logs WHERE created_at >= $1 GROUP BY %s ORDER BY count DESC`, column, column)
	var counts []models.CountByKey
	if err := r.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("counts by %s: %w", column, err)
	}
	return counts, nil
}

// DailyTrend buckets record counts by UTC calendar day since the given time.
func (r *AuditRepository) DailyTrend(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	const query = `SELECT DATE_TRUNC('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*) AS count
		FROM audit_logs WHERE created_at >= $1 GROUP BY day ORDER BY day`
	var trend []models.DailyCount
	if err := r.db.SelectContext(ctx, &trend, query, since); err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}
	return trend, nil
}

// TopActors returns the most active actors with resolved identity.
func (r *AuditRepository) TopActors(ctx context.Context, since time.Time, limit int) ([]models.ActorActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT a.actor_id, u.email, u.full_name, COUNT(*) AS count
		FROM audit_logs a JOIN users u ON u.id = a.actor_id
		WHERE a.created_at >= $1 AND a.actor_id IS NOT NULL
		GROUP BY a.actor_id, u.email, u.full_name ORDER BY count DESC LIMIT $2`
	var actors []models.ActorActivity
	if err := r.db.SelectContext(ctx, &actors, query, since, limit); err != nil {
		return nil, fmt.Errorf("top actors: %w", err)
	}
	return actors, nil
}

// SuccessTotals returns the overall and failed record counts since the
// given time.
func (r *AuditRepository) SuccessTotals(ctx context.Context, since time.Time) (total, failed int, err error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE status = 'FAILED') AS failed
		FROM audit_logs WHERE created_at >= $1`
	row := struct {
		Total  int `db:"total"`
		Failed int `db:"failed"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, since); err != nil {
		return 0, 0, fmt.Errorf("success totals: %w", err)
	}
	return row.Total, row.Failed, nil
}

// DeleteOlderThan bulk-deletes records created before the cutoff and
// returns the number removed.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM audit_logs WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit records: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted audit records: %w", err)
	}
	return removed, nil
}
