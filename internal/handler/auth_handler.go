package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/internal/service"
	appErrors "github.com/secaware/admin-api/pkg/errors"
	"github.com/secaware/admin-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Logout(claims *models.JWTClaims, meta service.RequestMeta)
}

// AuthHandler handles sign-in and sign-out.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Logout godoc
// @Summary End the current session
// @Tags Auth
// @Produce json
// @Success 204 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.service.Logout(claimsFromContext(c), requestMeta(c))
	response.NoContent(c)
}
