package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrMemberNotFound       = errors.New("organization member not found")
	ErrCannotRemoveYourself = errors.New("cannot remove yourself from the organization")
	ErrCannotChangeOwnRole  = errors.New("cannot change your own role")
	ErrInvalidRole          = errors.New("invalid role")
	ErrRoleAboveOwn         = errors.New("cannot grant a role above your own")
	ErrOwnerProtected       = errors.New("only an owner can modify another owner")
	ErrLastOwner            = errors.New("the last owner cannot leave the organization")
)

// MemberService manages the users of the request's organization.
type MemberService struct {
	userRepo repository.UserRepository
	activity *ActivityService
}

// NewMemberService creates a new MemberService.
func NewMemberService(userRepo repository.UserRepository, activity *ActivityService) *MemberService {
	return &MemberService{
		userRepo: userRepo,
		activity: activity,
	}
}

// ListMembers returns every member of the request's organization.
func (s *MemberService) ListMembers(ctx context.Context, rc authz.RequestContext) ([]models.User, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}

	members, err := s.userRepo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ChangeRole sets the role of another member. The acting user cannot grant
// above their own rank, and only an OWNER may change an OWNER.
func (s *MemberService) ChangeRole(ctx context.Context, rc authz.RequestContext, targetID string, role authz.Role) (*models.User, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if targetID == rc.UserID() {
		return nil, ErrCannotChangeOwnRole
	}

	target, err := s.findMember(ctx, orgID, targetID)
	if err != nil {
		return nil, err
	}

	actorRole, _ := rc.Role()
	if role.Rank() > actorRole.Rank() {
		return nil, ErrRoleAboveOwn
	}
	if target.Role == authz.RoleOwner && actorRole != authz.RoleOwner {
		return nil, ErrOwnerProtected
	}

	previous := target.Role
	if err := s.userRepo.Update(ctx, target.ID, map[string]interface{}{"role": role}); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	target.Role = role

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionMemberRoleChanged,
		ResourceType:   "user",
		ResourceID:     target.ID,
		Metadata:       map[string]string{"from": previous.String(), "to": role.String()},
	})

	return target, nil
}

// RemoveMember unlinks another member from the organization.
func (s *MemberService) RemoveMember(ctx context.Context, rc authz.RequestContext, targetID string) error {
	orgID, err := tenantOf(rc)
	if err != nil {
		return err
	}
	if targetID == rc.UserID() {
		return ErrCannotRemoveYourself
	}

	target, err := s.findMember(ctx, orgID, targetID)
	if err != nil {
		return err
	}

	actorRole, _ := rc.Role()
	if target.Role == authz.RoleOwner && actorRole != authz.RoleOwner {
		return ErrOwnerProtected
	}

	if err := s.userRepo.LeaveOrganization(ctx, target.ID, orgID); err != nil {
		switch {
		case errors.Is(err, repository.ErrLastOwner):
			return ErrLastOwner
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionMemberRemoved,
		ResourceType:   "user",
		ResourceID:     target.ID,
		Metadata:       map[string]string{"email": target.Email},
	})

	return nil
}

// Leave unlinks the acting user from the organization.
func (s *MemberService) Leave(ctx context.Context, rc authz.RequestContext) error {
	orgID, err := tenantOf(rc)
	if err != nil {
		return err
	}

	if err := s.userRepo.LeaveOrganization(ctx, rc.UserID(), orgID); err != nil {
		switch {
		case errors.Is(err, repository.ErrLastOwner):
			return ErrLastOwner
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to leave organization: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionMemberLeft,
		ResourceType:   "user",
		ResourceID:     rc.UserID(),
	})

	return nil
}

func (s *MemberService) findMember(ctx context.Context, orgID, userID string) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	if !user.BelongsTo(orgID) {
		return nil, ErrMemberNotFound
	}
	return user, nil
}
