package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "supersecret"

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *gorm.DB
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *gorm.DB {
	return f.db
}

// CreateOrganization creates a test organization with the given name.
func (f *Fixtures) CreateOrganization(name string) models.Organization {
	f.t.Helper()

	org := models.Organization{Name: name}
	require.NoError(f.t, f.db.Create(&org).Error)
	return org
}

// CreateUser creates a user with no organization.
func (f *Fixtures) CreateUser(email string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(f.t, err)
	hashStr := string(hash)

	user := models.User{
		Email:        email,
		Name:         email,
		PasswordHash: &hashStr,
		Role:         authz.RoleGuest,
	}
	require.NoError(f.t, f.db.Create(&user).Error)
	return user
}

// CreateMember creates a user belonging to org with role.
func (f *Fixtures) CreateMember(email string, org models.Organization, role authz.Role) models.User {
	f.t.Helper()

	user := f.CreateUser(email)
	require.NoError(f.t, f.db.Model(&user).Updates(map[string]interface{}{
		"organization_id": org.ID,
		"role":            role,
	}).Error)
	user.OrganizationID = &org.ID
	user.Role = role
	return user
}

// CreateProject creates a project in org.
func (f *Fixtures) CreateProject(org models.Organization, creator models.User, name string) models.Project {
	f.t.Helper()

	project := models.Project{
		OrganizationID: org.ID,
		Name:           name,
		CreatorID:      creator.ID,
	}
	require.NoError(f.t, f.db.Create(&project).Error)
	return project
}

// CreateTask creates a top-level task in project.
func (f *Fixtures) CreateTask(project models.Project, creator models.User, title string) models.Task {
	f.t.Helper()

	task := models.Task{
		Title:          title,
		Status:         models.TaskStatusTodo,
		ProjectID:      project.ID,
		OrganizationID: project.OrganizationID,
		CreatorID:      creator.ID,
	}
	require.NoError(f.t, f.db.Create(&task).Error)
	return task
}

// CreateInvitation creates a pending invitation.
func (f *Fixtures) CreateInvitation(org models.Organization, inviter models.User, email string, role authz.Role, token string) models.Invitation {
	f.t.Helper()

	invitation := models.Invitation{
		Email:          email,
		Role:           role,
		Token:          token,
		OrganizationID: org.ID,
		InviterID:      inviter.ID,
	}
	require.NoError(f.t, f.db.Create(&invitation).Error)
	return invitation
}
