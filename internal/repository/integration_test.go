//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/database"
	"github.com/yukikurage/project-management-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgres starts a PostgreSQL container and returns a migrated
// connection. Tests are skipped if no container runtime is available.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	ctx := context.Background()
	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("pm_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestPostgres_MembershipLifecycle(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	orgs := NewOrganizationRepository(db)
	invitations := NewInvitationRepository(db)

	founder := &models.User{Email: "founder@pg.test", Name: "Founder"}
	require.NoError(t, users.Create(ctx, founder))
	org := &models.Organization{Name: "PG"}
	require.NoError(t, orgs.CreateWithOwner(ctx, org, founder.ID))

	invitee := &models.User{Email: "invitee@pg.test", Name: "Invitee"}
	require.NoError(t, users.Create(ctx, invitee))
	inv := &models.Invitation{
		Email:          invitee.Email,
		Role:           authz.RoleMember,
		Token:          "pg-token",
		OrganizationID: org.ID,
		InviterID:      founder.ID,
	}
	require.NoError(t, invitations.Create(ctx, inv))
	require.NoError(t, invitations.Accept(ctx, inv, invitee.ID))

	m, err := users.GetMembership(ctx, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, m.OrganizationID)
	assert.Equal(t, authz.RoleMember, m.Role)

	// accepting the consumed invitation again fails as a whole
	other := &models.User{Email: "other@pg.test", Name: "Other"}
	require.NoError(t, users.Create(ctx, other))
	assert.ErrorIs(t, invitations.Accept(ctx, inv, other.ID), ErrInvitationGone)

	m, err = users.GetMembership(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, m.HasOrganization())

	require.NoError(t, orgs.Delete(ctx, org.ID))
	m, err = users.GetMembership(ctx, founder.ID)
	require.NoError(t, err)
	assert.False(t, m.HasOrganization())
}
