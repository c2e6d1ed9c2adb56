package database

import (
	"fmt"

	"github.com/yukikurage/project-management-api/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds composite indexes that the struct tags cannot express.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		model   interface{}
		table   string
		name    string
		columns string
	}{
		// tenant-scoped listings
		{&models.Project{}, "projects", "idx_projects_org_created", "organization_id, created_at"},
		{&models.Task{}, "tasks", "idx_tasks_project_status", "project_id, status"},
		{&models.Task{}, "tasks", "idx_tasks_org_parent", "organization_id, parent_id"},
		{&models.ActivityLog{}, "activity_logs", "idx_activity_org_created", "organization_id, created_at"},

		// membership lookups
		{&models.User{}, "users", "idx_users_org_role", "organization_id, role"},
		{&models.Invitation{}, "invitations", "idx_invitations_org_email", "organization_id, email"},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}
