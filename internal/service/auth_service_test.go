package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/pkg/config"
)

type userRepoMock struct {
	user          *models.User
	findErr       error
	lastLoginSet  bool
	lastLoginUser string
}

func (m *userRepoMock) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.user, m.findErr
}

func (m *userRepoMock) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.user, m.findErr
}

func (m *userRepoMock) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginSet = true
	m.lastLoginUser = id
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}
}

func activeUser(t *testing.T, password string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		FullName:     "Admin",
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

func loginRequest() models.LoginRequest {
	return models.LoginRequest{
		Email:     "admin@example.com",
		Password:  "hunter2replica",
		IP:        "10.0.0.1",
		UserAgent: "go-test",
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := &userRepoMock{user: activeUser(t, "hunter2replica")}
	rec := &recorderMock{}
	svc := NewAuthService(repo, rec, nil, testJWTConfig(), nil)

	resp, err := svc.Login(context.Background(), loginRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.True(t, repo.lastLoginSet)

	require.Len(t, rec.recorded, 1)
	entry := rec.recorded[0]
	assert.Equal(t, models.ActionLogin, entry.ActionType)
	assert.Equal(t, models.StatusSuccess, entry.Status)
	assert.Equal(t, models.SeverityLow, entry.Severity)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "user-1", *entry.ActorID)
}

func TestLoginUnknownAccountRecordsNullActor(t *testing.T) {
	repo := &userRepoMock{findErr: sql.ErrNoRows}
	rec := &recorderMock{}
	svc := NewAuthService(repo, rec, nil, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), loginRequest())
	require.Error(t, err)

	require.Len(t, rec.recorded, 1)
	entry := rec.recorded[0]
	assert.Nil(t, entry.ActorID)
	assert.Equal(t, models.StatusFailed, entry.Status)
	assert.Equal(t, models.SeverityMedium, entry.Severity)
}

func TestLoginBadPasswordRecordsNullActor(t *testing.T) {
	repo := &userRepoMock{user: activeUser(t, "the-real-password")}
	rec := &recorderMock{}
	svc := NewAuthService(repo, rec, nil, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), loginRequest())
	require.Error(t, err)

	require.Len(t, rec.recorded, 1)
	assert.Nil(t, rec.recorded[0].ActorID)
	assert.Equal(t, models.StatusFailed, rec.recorded[0].Status)
}

func TestLoginInactiveAccountRecordsActor(t *testing.T) {
	user := activeUser(t, "hunter2replica")
	user.Active = false
	repo := &userRepoMock{user: user}
	rec := &recorderMock{}
	svc := NewAuthService(repo, rec, nil, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), loginRequest())
	require.Error(t, err)

	require.Len(t, rec.recorded, 1)
	require.NotNil(t, rec.recorded[0].ActorID)
	assert.Equal(t, "user-1", *rec.recorded[0].ActorID)
	assert.Equal(t, models.StatusFailed, rec.recorded[0].Status)
}

func TestLoginRejectsMalformedPayload(t *testing.T) {
	rec := &recorderMock{}
	svc := NewAuthService(&userRepoMock{}, rec, nil, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Empty(t, rec.recorded)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	repo := &userRepoMock{user: activeUser(t, "hunter2replica")}
	svc := NewAuthService(repo, &recorderMock{}, nil, testJWTConfig(), nil)

	resp, err := svc.Login(context.Background(), loginRequest())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(&userRepoMock{}, &recorderMock{}, nil, testJWTConfig(), nil)

	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestRecordRejectedToken(t *testing.T) {
	rec := &recorderMock{}
	svc := NewAuthService(&userRepoMock{}, rec, nil, testJWTConfig(), nil)

	svc.RecordRejectedToken("GET", "/api/v1/admin/audit-logs", testMeta())

	require.Len(t, rec.recorded, 1)
	entry := rec.recorded[0]
	assert.Nil(t, entry.ActorID)
	assert.Equal(t, models.ActionLogin, entry.ActionType)
	assert.Equal(t, models.StatusFailed, entry.Status)
	assert.Equal(t, 401, entry.Metadata.ResponseStatus)
}

func TestLogout(t *testing.T) {
	rec := &recorderMock{}
	svc := NewAuthService(&userRepoMock{}, rec, nil, testJWTConfig(), nil)

	svc.Logout(&models.JWTClaims{UserID: "user-1"}, testMeta())
	require.Len(t, rec.recorded, 1)
	assert.Equal(t, models.ActionLogout, rec.recorded[0].ActionType)

	svc.Logout(nil, testMeta())
	assert.Len(t, rec.recorded, 1)
}
