package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/secaware/admin-api/internal/models"
)

// PolicyRepository persists policy lifecycle state.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates a new instance of PolicyRepository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// FindByID returns a policy by identifier.
func (r *PolicyRepository) FindByID(ctx context.Context, id string) (*models.Policy, error) {
	const query = `SELECT id, title, version, status, published_at, archived_at, created_at, updated_at FROM policies WHERE id = $1 LIMIT 1`
	var policy models.Policy
	if err := r.db.GetContext(ctx, &policy, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find policy by id: %w", err)
	}
	return &policy, nil
}

// UpdateStatus moves a policy to a new lifecycle state, stamping the
// matching transition timestamp.
func (r *PolicyRepository) UpdateStatus(ctx context.Context, id string, status models.PolicyStatus, at time.Time) error {
	var query string
	switch status {
	case models.PolicyPublished:
		query = `UPDATE policies SET status = $2, published_at = $3, updated_at = $3 WHERE id = $1`
	case models.PolicyArchived:
		query = `UPDATE policies SET status = $2, archived_at = $3, updated_at = $3 WHERE id = $1`
	default:
		query = `UPDATE policies SET status = $2, updated_at = $3 WHERE id = $1`
	}
	if _, err := r.db.ExecContext(ctx, query, id, status, at); err != nil {
		return fmt.Errorf("update policy status: %w", err)
	}
	return nil
}
