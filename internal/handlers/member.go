package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/dto"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/services"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{
		memberService: memberService,
	}
}

// ListMembers returns the members of the tenant.
func (h *MemberHandler) ListMembers(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	members, err := h.memberService.ListMembers(c.Request.Context(), rc)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToMemberDTOs(members))
}

// UpdateMemberRole changes the role of a member.
func (h *MemberHandler) UpdateMemberRole(c *gin.Context) {
	type UpdateRoleRequest struct {
		Role string `json:"role" binding:"required"`
	}

	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	role, err := authz.ParseRole(req.Role)
	if err != nil {
		apierrors.BadRequest(c, "Invalid role")
		return
	}

	member, err := h.memberService.ChangeRole(c.Request.Context(), rc, c.Param("id"), role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToMemberDTO(*member))
}

// RemoveMember removes a member from the tenant.
func (h *MemberHandler) RemoveMember(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	if err := h.memberService.RemoveMember(c.Request.Context(), rc, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// LeaveOrganization removes the current user from the tenant.
func (h *MemberHandler) LeaveOrganization(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	if err := h.memberService.Leave(c.Request.Context(), rc); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left organization successfully"})
}
