package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secaware/admin-api/internal/models"
	appErrors "github.com/secaware/admin-api/pkg/errors"
)

type policyRepoMock struct {
	policy     *models.Policy
	findErr    error
	updateErr  error
	lastStatus models.PolicyStatus
}

func (m *policyRepoMock) FindByID(ctx context.Context, id string) (*models.Policy, error) {
	return m.policy, m.findErr
}

func (m *policyRepoMock) UpdateStatus(ctx context.Context, id string, status models.PolicyStatus, at time.Time) error {
	m.lastStatus = status
	return m.updateErr
}

func draftPolicy() *models.Policy {
	return &models.Policy{ID: "p1", Title: "Acceptable Use", Version: "1.0", Status: models.PolicyDraft}
}

func TestPublishDraft(t *testing.T) {
	repo := &policyRepoMock{policy: draftPolicy()}
	rec := &recorderMock{}
	svc := NewPolicyService(repo, rec, nil)

	policy, err := svc.Publish(context.Background(), "p1", adminClaims(), testMeta())
	require.NoError(t, err)
	assert.Equal(t, models.PolicyPublished, policy.Status)
	assert.NotNil(t, policy.PublishedAt)
	assert.Equal(t, models.PolicyPublished, repo.lastStatus)

	require.Len(t, rec.recorded, 1)
	entry := rec.recorded[0]
	assert.Equal(t, models.ActionPolicyPublish, entry.ActionType)
	assert.Equal(t, models.SeverityHigh, entry.Severity)

	var before, after map[string]string
	require.NoError(t, json.Unmarshal(entry.ChangesBefore, &before))
	require.NoError(t, json.Unmarshal(entry.ChangesAfter, &after))
	assert.Equal(t, "draft", before["status"])
	assert.Equal(t, "published", after["status"])
}

func TestArchivePublished(t *testing.T) {
	policy := draftPolicy()
	policy.Status = models.PolicyPublished
	repo := &policyRepoMock{policy: policy}
	rec := &recorderMock{}
	svc := NewPolicyService(repo, rec, nil)

	got, err := svc.Archive(context.Background(), "p1", adminClaims(), testMeta())
	require.NoError(t, err)
	assert.Equal(t, models.PolicyArchived, got.Status)
	assert.NotNil(t, got.ArchivedAt)
	require.Len(t, rec.recorded, 1)
	assert.Equal(t, models.ActionPolicyArchive, rec.recorded[0].ActionType)
}

func TestTransitionsAreMonotonic(t *testing.T) {
	rec := &recorderMock{}

	// draft cannot be archived directly.
	repo := &policyRepoMock{policy: draftPolicy()}
	svc := NewPolicyService(repo, rec, nil)
	_, err := svc.Archive(context.Background(), "p1", adminClaims(), testMeta())
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)

	// archived is terminal.
	archived := draftPolicy()
	archived.Status = models.PolicyArchived
	repo = &policyRepoMock{policy: archived}
	svc = NewPolicyService(repo, rec, nil)
	_, err = svc.Publish(context.Background(), "p1", adminClaims(), testMeta())
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)

	assert.Empty(t, rec.recorded)
}

func TestTransitionNotFound(t *testing.T) {
	repo := &policyRepoMock{findErr: sql.ErrNoRows}
	svc := NewPolicyService(repo, &recorderMock{}, nil)

	_, err := svc.Publish(context.Background(), "missing", adminClaims(), testMeta())
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestTransitionRequiresActor(t *testing.T) {
	svc := NewPolicyService(&policyRepoMock{policy: draftPolicy()}, &recorderMock{}, nil)

	_, err := svc.Publish(context.Background(), "p1", nil, testMeta())
	require.Error(t, err)
	assert.Equal(t, 401, appErrors.FromError(err).Status)
}
