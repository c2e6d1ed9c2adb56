package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
)

var (
	// ErrUserAlreadyInOrganization is returned when a user that already
	// belongs to an organization would be linked to another one.
	ErrUserAlreadyInOrganization = errors.New("repository: user already belongs to an organization")
	// ErrInvitationGone is returned when an invitation was deleted between
	// read and acceptance.
	ErrInvitationGone = errors.New("repository: invitation no longer exists")
	// ErrLastOwner is returned when unlinking a user would leave the
	// organization without an owner.
	ErrLastOwner = errors.New("repository: organization would be left without an owner")
)

// UserRepository defines the interface for user data access. It is also the
// membership store consulted by the authorization pipeline.
type UserRepository interface {
	authz.MembershipStore

	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByEmail finds a user by email address
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByGoogleID finds a user by federated subject
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)

	// Update applies a partial update to a user
	Update(ctx context.Context, id string, fields map[string]interface{}) error

	// ListByOrganization lists the members of an organization
	ListByOrganization(ctx context.Context, organizationID string) ([]models.User, error)

	// CountInOrganization counts how many of userIDs belong to organizationID
	CountInOrganization(ctx context.Context, userIDs []string, organizationID string) (int64, error)

	// LeaveOrganization unlinks a user, resets the role to GUEST and drops
	// the user's task assignments in that organization. It returns
	// ErrLastOwner instead of unlinking the organization's only owner.
	LeaveOrganization(ctx context.Context, userID, organizationID string) error
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	// Create creates a new organization
	Create(ctx context.Context, org *models.Organization) error

	// CreateWithOwner creates an organization and makes ownerID its OWNER
	// within a single transaction.
	CreateWithOwner(ctx context.Context, org *models.Organization, ownerID string) error

	// FindByID finds an organization by ID
	FindByID(ctx context.Context, id string) (*models.Organization, error)

	// Update updates an organization
	Update(ctx context.Context, org *models.Organization) error

	// Delete deletes an organization and all related data
	Delete(ctx context.Context, id string) error
}

// InvitationRepository defines the interface for invitation data access
type InvitationRepository interface {
	Create(ctx context.Context, invitation *models.Invitation) error
	FindByID(ctx context.Context, organizationID, id string) (*models.Invitation, error)
	FindByToken(ctx context.Context, token string) (*models.Invitation, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]models.Invitation, error)
	Delete(ctx context.Context, id string) error

	// Accept links userID to the invitation's organization with its role
	// and deletes the invitation in one transaction.
	Accept(ctx context.Context, invitation *models.Invitation, userID string) error
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, organizationID, id string) (*models.Project, error)
	List(ctx context.Context, organizationID string, page, pageSize int) ([]models.Project, int64, error)
	Update(ctx context.Context, project *models.Project) error

	// Delete soft deletes a project together with its tasks
	Delete(ctx context.Context, id string) error
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task inside an organization with optional preloading
	FindByID(ctx context.Context, organizationID, id string, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// Update updates a task
	Update(ctx context.Context, task *models.Task) error

	// Delete soft deletes a task and its subtasks
	Delete(ctx context.Context, id string) error

	// AssignUsers assigns multiple users to a task
	AssignUsers(ctx context.Context, taskID string, userIDs []string) error

	// UnassignUsers removes user assignments from a task
	UnassignUsers(ctx context.Context, taskID string, userIDs []string) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	OrganizationID string
	ProjectID      string
	Status         *models.TaskStatus
	AssignedUserID *string
	DueDateFrom    *time.Time
	DueDateTo      *time.Time
	SortByDueDate  bool
	// IncludeSubtasks lists subtasks alongside top-level tasks.
	IncludeSubtasks bool
	Page            int
	PageSize        int
}

// ActivityRepository defines the interface for the audit trail
type ActivityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, organizationID string, page, pageSize int) ([]models.ActivityLog, int64, error)
}
