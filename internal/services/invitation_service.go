package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/constants"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrInvitationNotFound      = errors.New("invitation not found")
	ErrInvitationExpired       = errors.New("invitation expired")
	ErrInvitationEmailMismatch = errors.New("invitation email does not match user")
	ErrAlreadyMember           = errors.New("user is already a member of this organization")
	ErrTokenGenerationFailed   = errors.New("failed to generate invitation token")
)

// InvitationService creates and redeems invitations. Expiry is lazy: an
// invitation older than the TTL stays stored until deleted, it simply can
// no longer be accepted.
type InvitationService struct {
	invRepo  repository.InvitationRepository
	userRepo repository.UserRepository
	activity *ActivityService
	ttl      time.Duration
	now      func() time.Time
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(invRepo repository.InvitationRepository, userRepo repository.UserRepository, activity *ActivityService) *InvitationService {
	return &InvitationService{
		invRepo:  invRepo,
		userRepo: userRepo,
		activity: activity,
		ttl:      constants.InvitationTTL,
		now:      time.Now,
	}
}

// WithClock returns a copy of the service that reads time from now.
func (s *InvitationService) WithClock(now func() time.Time) *InvitationService {
	cp := *s
	cp.now = now
	return &cp
}

// CreateInvitationInput represents parameters to invite a user.
type CreateInvitationInput struct {
	Email string
	Role  authz.Role
}

// CreateInvitation invites an email address into the request's
// organization with a role no higher than the inviter's.
func (s *InvitationService) CreateInvitation(ctx context.Context, rc authz.RequestContext, input CreateInvitationInput) (*models.Invitation, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}

	email, err := parseEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}
	inviterRole, _ := rc.Role()
	if input.Role.Rank() > inviterRole.Rank() {
		return nil, ErrRoleAboveOwn
	}

	if existing, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		if existing.BelongsTo(orgID) {
			return nil, ErrAlreadyMember
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check invitee: %w", err)
	}

	tok, err := utils.GenerateInvitationToken()
	if err != nil {
		return nil, ErrTokenGenerationFailed
	}

	invitation := &models.Invitation{
		Email:          email,
		Role:           input.Role,
		Token:          tok,
		OrganizationID: orgID,
		InviterID:      rc.UserID(),
		CreatedAt:      s.now(),
	}
	if err := s.invRepo.Create(ctx, invitation); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionInvitationCreated,
		ResourceType:   "invitation",
		ResourceID:     invitation.ID,
		Metadata:       map[string]string{"email": email, "role": input.Role.String()},
	})

	return invitation, nil
}

// ListInvitations returns the pending invitations of the request's
// organization, including ones past their acceptance window.
func (s *InvitationService) ListInvitations(ctx context.Context, rc authz.RequestContext) ([]models.Invitation, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}

	invitations, err := s.invRepo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// DeleteInvitation revokes an invitation of the request's organization.
func (s *InvitationService) DeleteInvitation(ctx context.Context, rc authz.RequestContext, id string) error {
	orgID, err := tenantOf(rc)
	if err != nil {
		return err
	}

	invitation, err := s.invRepo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		return fmt.Errorf("failed to find invitation: %w", err)
	}

	if err := s.invRepo.Delete(ctx, invitation.ID); err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionInvitationDeleted,
		ResourceType:   "invitation",
		ResourceID:     invitation.ID,
		Metadata:       map[string]string{"email": invitation.Email},
	})

	return nil
}

// GetInvitationByToken looks up an invitation for display. The second
// return value reports whether the acceptance window has passed.
func (s *InvitationService) GetInvitationByToken(ctx context.Context, tok string) (*models.Invitation, bool, error) {
	invitation, err := s.findByToken(ctx, tok)
	if err != nil {
		return nil, false, err
	}
	return invitation, invitation.Expired(s.now(), s.ttl), nil
}

// IsExpired reports whether inv is past its acceptance window.
func (s *InvitationService) IsExpired(inv models.Invitation) bool {
	return inv.Expired(s.now(), s.ttl)
}

// AcceptInvitation links userID to the invitation's organization. The
// user's email must match, the user must not belong to an organization and
// the invitation must be younger than the TTL.
func (s *InvitationService) AcceptInvitation(ctx context.Context, userID, tok string) (*models.Invitation, error) {
	invitation, err := s.findByToken(ctx, tok)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if utils.NormalizeEmail(user.Email) != utils.NormalizeEmail(invitation.Email) {
		return nil, ErrInvitationEmailMismatch
	}
	if user.OrganizationID != nil {
		return nil, ErrAlreadyInOrganization
	}
	if invitation.Expired(s.now(), s.ttl) {
		return nil, ErrInvitationExpired
	}

	if err := s.invRepo.Accept(ctx, invitation, user.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserAlreadyInOrganization):
			return nil, ErrAlreadyInOrganization
		case errors.Is(err, repository.ErrInvitationGone):
			return nil, ErrInvitationNotFound
		default:
			return nil, fmt.Errorf("failed to accept invitation: %w", err)
		}
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: invitation.OrganizationID,
		ActorID:        user.ID,
		Action:         ActionInvitationAccepted,
		ResourceType:   "invitation",
		ResourceID:     invitation.ID,
		Metadata:       map[string]string{"email": user.Email, "role": invitation.Role.String()},
	})

	return invitation, nil
}

func (s *InvitationService) findByToken(ctx context.Context, tok string) (*models.Invitation, error) {
	if tok == "" {
		return nil, ErrInvitationNotFound
	}
	invitation, err := s.invRepo.FindByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	return invitation, nil
}
