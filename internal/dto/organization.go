package dto

import (
	"time"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/token"
)

// MemberDTO represents a member of an organization
type MemberDTO struct {
	User     UserDTO    `json:"user"`
	Role     authz.Role `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

// OrganizationDetailDTO represents detailed organization information
type OrganizationDetailDTO struct {
	OrganizationDTO
	Members  []MemberDTO `json:"members"`
	YourRole authz.Role  `json:"your_role"`
}

// InvitationDTO represents an invitation in API responses. The token is
// only included right after creation.
type InvitationDTO struct {
	ID             string           `json:"id"`
	Email          string           `json:"email"`
	Role           authz.Role       `json:"role"`
	OrganizationID string           `json:"organization_id"`
	Organization   *OrganizationDTO `json:"organization,omitempty"`
	Inviter        *UserDTO         `json:"inviter,omitempty"`
	Token          string           `json:"token,omitempty"`
	Expired        bool             `json:"expired"`
	CreatedAt      time.Time        `json:"created_at"`
}

// AuthResponse is returned by every endpoint that signs a user in
type AuthResponse struct {
	User   CurrentUserDTO `json:"user"`
	Tokens token.Pair     `json:"tokens"`
}

// ActivityDTO represents one audit trail entry
type ActivityDTO struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Metadata     string    `json:"metadata,omitempty"`
	Actor        *UserDTO  `json:"actor,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActivityListResponse represents a paginated audit trail
type ActivityListResponse struct {
	Entries    []ActivityDTO `json:"entries"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int64         `json:"total_count"`
	TotalPages int           `json:"total_pages"`
}

// ToMemberDTO converts a member to DTO
func ToMemberDTO(user models.User) MemberDTO {
	return MemberDTO{
		User:     ToUserDTO(user),
		Role:     user.Role,
		JoinedAt: user.UpdatedAt,
	}
}

// ToMemberDTOs converts members to DTOs
func ToMemberDTOs(users []models.User) []MemberDTO {
	members := make([]MemberDTO, len(users))
	for i, user := range users {
		members[i] = ToMemberDTO(user)
	}
	return members
}

// ToOrganizationDetailDTO converts organization with members to detailed DTO
func ToOrganizationDetailDTO(org models.Organization, members []models.User, yourRole authz.Role) OrganizationDetailDTO {
	return OrganizationDetailDTO{
		OrganizationDTO: ToOrganizationDTO(org),
		Members:         ToMemberDTOs(members),
		YourRole:        yourRole,
	}
}

// ToInvitationDTO converts an invitation to DTO
func ToInvitationDTO(inv models.Invitation, includeToken, expired bool) InvitationDTO {
	dto := InvitationDTO{
		ID:             inv.ID,
		Email:          inv.Email,
		Role:           inv.Role,
		OrganizationID: inv.OrganizationID,
		Expired:        expired,
		CreatedAt:      inv.CreatedAt,
	}
	if includeToken {
		dto.Token = inv.Token
	}

	// Include relations if preloaded
	if inv.Organization.ID != "" {
		org := ToOrganizationDTO(inv.Organization)
		dto.Organization = &org
	}
	if inv.Inviter.ID != "" {
		inviter := ToUserDTO(inv.Inviter)
		dto.Inviter = &inviter
	}

	return dto
}

// ToAuthResponse converts a signed-in user and credentials to AuthResponse
func ToAuthResponse(user models.User, pair token.Pair) AuthResponse {
	return AuthResponse{
		User:   ToCurrentUserDTO(user),
		Tokens: pair,
	}
}

// ToActivityListResponse converts audit entries to ActivityListResponse
func ToActivityListResponse(entries []models.ActivityLog, page, pageSize int, totalCount int64) ActivityListResponse {
	items := make([]ActivityDTO, len(entries))
	for i, entry := range entries {
		items[i] = ActivityDTO{
			ID:           entry.ID,
			Action:       entry.Action,
			ResourceType: entry.ResourceType,
			ResourceID:   entry.ResourceID,
			Metadata:     entry.Metadata,
			CreatedAt:    entry.CreatedAt,
		}
		if entry.Actor.ID != "" {
			actor := ToUserDTO(entry.Actor)
			items[i].Actor = &actor
		}
	}

	return ActivityListResponse{
		Entries:    items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages(totalCount, pageSize),
	}
}
