package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/pkg/config"
	appErrors "github.com/secaware/admin-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

// AuthService resolves actor identity for the rest of the system and
// writes the LOGIN/LOGOUT entries of the trail.
type AuthService struct {
	repo      authUserRepository
	recorder  auditRecorder
	validator *validator.Validate
	jwtCfg    config.JWTConfig
	logger    *zap.Logger
}

// NewAuthService creates an instance of AuthService.
func NewAuthService(repo authUserRepository, recorder auditRecorder, validate *validator.Validate, jwtCfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, recorder: recorder, validator: validate, jwtCfg: jwtCfg, logger: logger}
}

// Login authenticates credentials and issues an access token. Failed
// attempts are recorded with a null actor since no identity was resolved.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordLogin(nil, req, models.StatusFailed, "Unknown account")
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordLogin(nil, req, models.StatusFailed, "Invalid credentials")
		return nil, appErrors.ErrInvalidCredentials
	}

	if !user.Active {
		s.recordLogin(&user.ID, req, models.StatusFailed, "Inactive account")
		return nil, appErrors.ErrInactiveAccount
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.jwtCfg.Expiration)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.recordLogin(&user.ID, req, models.StatusSuccess, "Signed in")

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtCfg.Expiration.Seconds()),
		User:        models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: user.Role},
		IssuedAt:    now,
	}, nil
}

// Logout records the end of a session. Token invalidation itself is the
// client's concern with stateless JWTs.
func (s *AuthService) Logout(claims *models.JWTClaims, meta RequestMeta) {
	if claims == nil {
		return
	}
	s.recorder.Record(&models.AuditRecord{
		ActorID:    &claims.UserID,
		Action:     "Signed out",
		ActionType: models.ActionLogout,
		Resource:   models.ResourceUser,
		ResourceID: &claims.UserID,
		Severity:   models.SeverityLow,
		Status:     models.StatusSuccess,
		Metadata: models.AuditMetadata{
			IPAddress:      meta.IP,
			UserAgent:      meta.UserAgent,
			Method:         http.MethodPost,
			Endpoint:       "/auth/logout",
			ResponseStatus: http.StatusOK,
			SessionID:      meta.SessionID,
		},
	})
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(raw string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.ErrUnauthorized
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

// RecordRejectedToken writes the null-actor record for a request that
// presented an invalid credential and never resolved an identity.
func (s *AuthService) RecordRejectedToken(method, endpoint string, meta RequestMeta) {
	s.recorder.Record(&models.AuditRecord{
		ActorID:    nil,
		Action:     "Rejected credential",
		ActionType: models.ActionLogin,
		Resource:   models.ResourceUser,
		Details:    "Request rejected: invalid or expired token",
		Severity:   models.SeverityMedium,
		Status:     models.StatusFailed,
		Metadata: models.AuditMetadata{
			IPAddress:      meta.IP,
			UserAgent:      meta.UserAgent,
			Method:         method,
			Endpoint:       endpoint,
			ResponseStatus: http.StatusUnauthorized,
			SessionID:      meta.SessionID,
		},
	})
}

func (s *AuthService) recordLogin(actorID *string, req models.LoginRequest, status models.AuditStatus, detail string) {
	severity := models.SeverityLow
	responseStatus := http.StatusOK
	if status == models.StatusFailed {
		severity = models.SeverityMedium
		responseStatus = http.StatusUnauthorized
	}

	s.recorder.Record(&models.AuditRecord{
		ActorID:    actorID,
		Action:     "Sign-in attempt",
		ActionType: models.ActionLogin,
		Resource:   models.ResourceUser,
		ResourceID: actorID,
		Details:    detail,
		Severity:   severity,
		Status:     status,
		Metadata: models.AuditMetadata{
			IPAddress:      req.IP,
			UserAgent:      req.UserAgent,
			Method:         http.MethodPost,
			Endpoint:       "/auth/login",
			ResponseStatus: responseStatus,
		},
	})
}
