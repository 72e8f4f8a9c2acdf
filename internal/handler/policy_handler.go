package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/internal/service"
	"github.com/secaware/admin-api/pkg/response"
)

type policyService interface {
	Publish(ctx context.Context, id string, actor *models.JWTClaims, meta service.RequestMeta) (*models.Policy, error)
	Archive(ctx context.Context, id string, actor *models.JWTClaims, meta service.RequestMeta) (*models.Policy, error)
}

// PolicyHandler exposes the policy lifecycle transitions.
type PolicyHandler struct {
	service policyService
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(svc policyService) *PolicyHandler {
	return &PolicyHandler{service: svc}
}

// Publish godoc
// @Summary Publish a draft policy
// @Tags Policies
// @Produce json
// @Param id path string true "Policy ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/policies/{id}/publish [post]
func (h *PolicyHandler) Publish(c *gin.Context) {
	policy, err := h.service.Publish(c.Request.Context(), c.Param("id"), claimsFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, policy, nil)
}

// Archive godoc
// @Summary Archive a published policy
// @Tags Policies
// @Produce json
// @Param id path string true "Policy ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/policies/{id}/archive [post]
func (h *PolicyHandler) Archive(c *gin.Context) {
	policy, err := h.service.Archive(c.Request.Context(), c.Param("id"), claimsFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, policy, nil)
}
