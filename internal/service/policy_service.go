package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/secaware/admin-api/internal/models"
	appErrors "github.com/secaware/admin-api/pkg/errors"
)

type policyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Policy, error)
	UpdateStatus(ctx context.Context, id string, status models.PolicyStatus, at time.Time) error
}

// PolicyService drives the policy lifecycle. Each transition produces
// exactly one record whose change snapshots capture the status fields,
// so the draft -> published -> archived progression stays verifiable
// after the fact.
type PolicyService struct {
	repo     policyRepository
	recorder auditRecorder
	logger   *zap.Logger
}

// NewPolicyService creates an instance of PolicyService.
func NewPolicyService(repo policyRepository, recorder auditRecorder, logger *zap.Logger) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{repo: repo, recorder: recorder, logger: logger}
}

// Publish moves a draft policy to published.
func (s *PolicyService) Publish(ctx context.Context, id string, actor *models.JWTClaims, meta RequestMeta) (*models.Policy, error) {
	return s.transition(ctx, id, models.PolicyPublished, models.ActionPolicyPublish, actor, meta)
}

// Archive moves a published policy to archived.
func (s *PolicyService) Archive(ctx context.Context, id string, actor *models.JWTClaims, meta RequestMeta) (*models.Policy, error) {
	return s.transition(ctx, id, models.PolicyArchived, models.ActionPolicyArchive, actor, meta)
}

func (s *PolicyService) transition(ctx context.Context, id string, target models.PolicyStatus, actionType models.ActionType, actor *models.JWTClaims, meta RequestMeta) (*models.Policy, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	policy, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy")
	}

	if !policy.Status.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("policy cannot move from %s to %s", policy.Status, target))
	}

	before, _ := json.Marshal(map[string]interface{}{"status": policy.Status})

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, target, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update policy status")
	}

	policy.Status = target
	policy.UpdatedAt = now
	switch target {
	case models.PolicyPublished:
		policy.PublishedAt = &now
	case models.PolicyArchived:
		policy.ArchivedAt = &now
	}

	after, _ := json.Marshal(map[string]interface{}{"status": target})

	s.recorder.Record(&models.AuditRecord{
		ActorID:       &actor.UserID,
		Action:        fmt.Sprintf("Policy %s", target),
		ActionType:    actionType,
		Resource:      models.ResourcePolicy,
		ResourceID:    &policy.ID,
		Details:       fmt.Sprintf("Policy %q moved to %s", policy.Title, target),
		ChangesBefore: before,
		ChangesAfter:  after,
		Severity:      models.SeverityHigh,
		Status:        models.StatusSuccess,
		Metadata: models.AuditMetadata{
			IPAddress:      meta.IP,
			UserAgent:      meta.UserAgent,
			Method:         http.MethodPost,
			Endpoint:       fmt.Sprintf("/admin/policies/%s/%s", policy.ID, transitionVerb(target)),
			ResponseStatus: http.StatusOK,
			SessionID:      meta.SessionID,
		},
	})

	return policy, nil
}

func transitionVerb(target models.PolicyStatus) string {
	if target == models.PolicyArchived {
		return "archive"
	}
	return "publish"
}
