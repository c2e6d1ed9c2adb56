package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/constants"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrOrganizationNotFound    = errors.New("organization not found")
	ErrInvalidOrganizationName = errors.New("organization name must be 1-255 characters")
	ErrAlreadyInOrganization   = errors.New("user already belongs to an organization")
	ErrNoTenant                = errors.New("no organization in request context")
)

// OrganizationService provides business logic for organization operations.
type OrganizationService struct {
	orgRepo  repository.OrganizationRepository
	userRepo repository.UserRepository
	activity *ActivityService
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(orgRepo repository.OrganizationRepository, userRepo repository.UserRepository, activity *ActivityService) *OrganizationService {
	return &OrganizationService{
		orgRepo:  orgRepo,
		userRepo: userRepo,
		activity: activity,
	}
}

// CreateOrganization creates a new organization and makes userID its
// OWNER. A user can only ever belong to one organization.
func (s *OrganizationService) CreateOrganization(ctx context.Context, userID, name string) (*models.Organization, error) {
	name, err := cleanName(name, ErrInvalidOrganizationName)
	if err != nil {
		return nil, err
	}

	org := &models.Organization{Name: name}
	if err := s.orgRepo.CreateWithOwner(ctx, org, userID); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyInOrganization) {
			return nil, ErrAlreadyInOrganization
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: org.ID,
		ActorID:        userID,
		Action:         ActionOrganizationCreated,
		ResourceType:   "organization",
		ResourceID:     org.ID,
		Metadata:       map[string]string{"name": org.Name},
	})

	return org, nil
}

// ListOrganizationsForUser returns the organizations the user belongs to:
// none or exactly one.
func (s *OrganizationService) ListOrganizationsForUser(ctx context.Context, userID string) ([]models.Organization, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.OrganizationID == nil {
		return []models.Organization{}, nil
	}

	org, err := s.orgRepo.FindByID(ctx, *user.OrganizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []models.Organization{}, nil
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	return []models.Organization{*org}, nil
}

// GetOrganizationWithMembers returns an organization and all of its members.
func (s *OrganizationService) GetOrganizationWithMembers(ctx context.Context, orgID string) (*models.Organization, []models.User, error) {
	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrganizationNotFound
		}
		return nil, nil, fmt.Errorf("failed to find organization: %w", err)
	}

	members, err := s.userRepo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list organization members: %w", err)
	}

	return org, members, nil
}

// UpdateOrganizationName renames the request's organization.
func (s *OrganizationService) UpdateOrganizationName(ctx context.Context, rc authz.RequestContext, name string) (*models.Organization, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}

	name, err = cleanName(name, ErrInvalidOrganizationName)
	if err != nil {
		return nil, err
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	previous := org.Name
	org.Name = name
	if err := s.orgRepo.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: org.ID,
		ActorID:        rc.UserID(),
		Action:         ActionOrganizationRenamed,
		ResourceType:   "organization",
		ResourceID:     org.ID,
		Metadata:       map[string]string{"from": previous, "to": name},
	})

	return org, nil
}

// DeleteOrganization removes the request's organization. Members are
// unlinked and become GUESTs without an organization.
func (s *OrganizationService) DeleteOrganization(ctx context.Context, rc authz.RequestContext) error {
	orgID, err := tenantOf(rc)
	if err != nil {
		return err
	}

	// Ensure organization exists
	if _, err := s.orgRepo.FindByID(ctx, orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to find organization: %w", err)
	}

	if err := s.orgRepo.Delete(ctx, orgID); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	return nil
}

func tenantOf(rc authz.RequestContext) (string, error) {
	orgID, ok := rc.TenantID()
	if !ok {
		return "", ErrNoTenant
	}
	return orgID, nil
}

func cleanName(name string, invalid error) (string, error) {
	name = utils.SanitizeText(name)
	if name == "" || len(name) > constants.MaxNameLength {
		return "", invalid
	}
	return name, nil
}
