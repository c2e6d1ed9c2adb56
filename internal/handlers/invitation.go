package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/dto"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/services"
)

type InvitationHandler struct {
	invitationService *services.InvitationService
}

func NewInvitationHandler(invitationService *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{
		invitationService: invitationService,
	}
}

// CreateInvitation invites an email address. The response carries the
// token; delivering it is up to the caller.
func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	type CreateInvitationRequest struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role" binding:"required"`
	}

	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var req CreateInvitationRequest
	if !bindJSON(c, &req) {
		return
	}

	role, err := authz.ParseRole(req.Role)
	if err != nil {
		apierrors.BadRequest(c, "Invalid role")
		return
	}

	inv, err := h.invitationService.CreateInvitation(c.Request.Context(), rc, services.CreateInvitationInput{
		Email: req.Email,
		Role:  role,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToInvitationDTO(*inv, true, false))
}

// ListInvitations returns the pending invitations of the tenant.
func (h *InvitationHandler) ListInvitations(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	invitations, err := h.invitationService.ListInvitations(c.Request.Context(), rc)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := make([]dto.InvitationDTO, len(invitations))
	for i, inv := range invitations {
		result[i] = dto.ToInvitationDTO(inv, false, h.invitationService.IsExpired(inv))
	}
	c.JSON(http.StatusOK, result)
}

func (h *InvitationHandler) DeleteInvitation(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	if err := h.invitationService.DeleteInvitation(c.Request.Context(), rc, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invitation deleted successfully"})
}

// GetInvitationByToken shows an invitation to the invitee before acceptance.
func (h *InvitationHandler) GetInvitationByToken(c *gin.Context) {
	if _, ok := requestContext(c); !ok {
		return
	}

	inv, expired, err := h.invitationService.GetInvitationByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationDTO(*inv, false, expired))
}

// AcceptInvitation joins the current user to the inviting organization.
func (h *InvitationHandler) AcceptInvitation(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	inv, err := h.invitationService.AcceptInvitation(c.Request.Context(), rc.UserID(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Invitation accepted",
		"organization_id": inv.OrganizationID,
		"role":            inv.Role,
	})
}
