package repository

import (
	"context"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// Create creates a new organization
func (r *GormOrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

// CreateWithOwner creates the organization and links ownerID as OWNER. The
// user must not already belong to an organization.
func (r *GormOrganizationRepository) CreateWithOwner(ctx context.Context, org *models.Organization, ownerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND organization_id IS NULL", ownerID).
			Updates(map[string]interface{}{
				"organization_id": org.ID,
				"role":            authz.RoleOwner,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserAlreadyInOrganization
		}

		return nil
	})
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// Update updates an organization
func (r *GormOrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(org).Error
}

// Delete deletes an organization and all related data in a transaction.
// Members are unlinked rather than deleted.
func (r *GormOrganizationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Unscoped().Model(&models.Task{}).Select("id").Where("organization_id = ?", id)

		if err := tx.Unscoped().Where("task_id IN (?)", taskIDs).Delete(&models.TaskAssignment{}).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Where("organization_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Where("organization_id = ?", id).Delete(&models.Project{}).Error; err != nil {
			return err
		}

		if err := tx.Where("organization_id = ?", id).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}

		if err := tx.Where("organization_id = ?", id).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}

		// Unlink members
		if err := tx.Model(&models.User{}).
			Where("organization_id = ?", id).
			Updates(map[string]interface{}{
				"organization_id": nil,
				"role":            authz.RoleGuest,
			}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&models.Organization{}).Error
	})
}
