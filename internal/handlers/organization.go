package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/dto"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/services"
)

// OrganizationHandler serves the tenant itself.
type OrganizationHandler struct {
	orgService *services.OrganizationService
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(orgService *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: orgService,
	}
}

// ListOrganizations returns the organizations of the current user.
func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	orgs, err := h.orgService.ListOrganizationsForUser(c.Request.Context(), rc.UserID())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := make([]dto.OrganizationDTO, len(orgs))
	for i, org := range orgs {
		result[i] = dto.ToOrganizationDTO(org)
	}
	c.JSON(http.StatusOK, result)
}

// CreateOrganization creates an organization owned by the current user.
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	type CreateOrganizationRequest struct {
		Name string `json:"name" binding:"required"`
	}

	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var req CreateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.orgService.CreateOrganization(c.Request.Context(), rc.UserID(), req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationDTO(*org))
}

// GetCurrentOrganization returns the tenant with its members.
func (h *OrganizationHandler) GetCurrentOrganization(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	orgID, hasTenant := rc.TenantID()
	if !hasTenant {
		apierrors.BadRequest(c, "Organization ID missing")
		return
	}

	org, members, err := h.orgService.GetOrganizationWithMembers(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	role, _ := rc.Role()
	c.JSON(http.StatusOK, dto.ToOrganizationDetailDTO(*org, members, role))
}

// UpdateCurrentOrganization renames the tenant.
func (h *OrganizationHandler) UpdateCurrentOrganization(c *gin.Context) {
	type UpdateOrganizationRequest struct {
		Name string `json:"name" binding:"required"`
	}

	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var req UpdateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.orgService.UpdateOrganizationName(c.Request.Context(), rc, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org))
}

// DeleteCurrentOrganization deletes the tenant and everything it owns.
func (h *OrganizationHandler) DeleteCurrentOrganization(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	if err := h.orgService.DeleteOrganization(c.Request.Context(), rc); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Organization deleted successfully"})
}
