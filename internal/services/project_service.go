package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrInvalidProjectName = errors.New("project name must be 1-255 characters")
)

// ProjectService handles project business logic. Every operation is scoped
// to the request's organization.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	activity    *ActivityService
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, activity *ActivityService) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		activity:    activity,
	}
}

// ProjectInput represents the writable fields of a project.
type ProjectInput struct {
	Name        *string
	Description *string
}

// ListProjects returns a page of projects.
func (s *ProjectService) ListProjects(ctx context.Context, rc authz.RequestContext, page, pageSize int) ([]models.Project, int64, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, 0, err
	}

	projects, total, err := s.projectRepo.List(ctx, orgID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// GetProject returns a project of the request's organization.
func (s *ProjectService) GetProject(ctx context.Context, rc authz.RequestContext, id string) (*models.Project, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}

	project, err := s.projectRepo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

// CreateProject creates a project owned by the request's organization.
func (s *ProjectService) CreateProject(ctx context.Context, rc authz.RequestContext, input ProjectInput) (*models.Project, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}
	if input.Name == nil {
		return nil, ErrInvalidProjectName
	}
	name, err := cleanName(*input.Name, ErrInvalidProjectName)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		OrganizationID: orgID,
		Name:           name,
		CreatorID:      rc.UserID(),
	}
	if input.Description != nil {
		project.Description = utils.SanitizeText(*input.Description)
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionProjectCreated,
		ResourceType:   "project",
		ResourceID:     project.ID,
		Metadata:       map[string]string{"name": project.Name},
	})

	return s.projectRepo.FindByID(ctx, orgID, project.ID)
}

// UpdateProject applies the non-nil fields of input.
func (s *ProjectService) UpdateProject(ctx context.Context, rc authz.RequestContext, id string, input ProjectInput) (*models.Project, error) {
	project, err := s.GetProject(ctx, rc, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := cleanName(*input.Name, ErrInvalidProjectName)
		if err != nil {
			return nil, err
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = utils.SanitizeText(*input.Description)
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: project.OrganizationID,
		ActorID:        rc.UserID(),
		Action:         ActionProjectUpdated,
		ResourceType:   "project",
		ResourceID:     project.ID,
	})

	return project, nil
}

// DeleteProject deletes a project and its tasks.
func (s *ProjectService) DeleteProject(ctx context.Context, rc authz.RequestContext, id string) error {
	project, err := s.GetProject(ctx, rc, id)
	if err != nil {
		return err
	}

	if err := s.projectRepo.Delete(ctx, project.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: project.OrganizationID,
		ActorID:        rc.UserID(),
		Action:         ActionProjectDeleted,
		ResourceType:   "project",
		ResourceID:     project.ID,
		Metadata:       map[string]string{"name": project.Name},
	})

	return nil
}
