package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/database"
	"github.com/yukikurage/project-management-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email address
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByGoogleID finds a user by federated subject
func (r *GormUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("google_id = ?", googleID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update applies a partial update to a user
func (r *GormUserRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

// GetMembership reads the user's current organization and role. It never
// caches: the pipeline relies on seeing role changes immediately.
func (r *GormUserRepository) GetMembership(ctx context.Context, userID string) (authz.Membership, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Select("id", "organization_id", "role").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return authz.Membership{}, authz.ErrUnknownUser
		}
		return authz.Membership{}, fmt.Errorf("reading membership of %s: %w", userID, err)
	}
	return user.Membership(), nil
}

// ListByOrganization lists the members of an organization
func (r *GormUserRepository) ListByOrganization(ctx context.Context, organizationID string) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Scopes(database.ForOrganization(organizationID)).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountInOrganization counts how many of userIDs belong to organizationID
func (r *GormUserRepository) CountInOrganization(ctx context.Context, userIDs []string, organizationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("organization_id = ? AND id IN ?", organizationID, userIDs).
		Count(&count).Error
	return count, err
}

// LeaveOrganization unlinks a user, resets the role to GUEST and drops the
// user's assignments on the organization's tasks. The organization's owner
// rows are locked first so that two owners leaving at once cannot both pass
// the last-owner check. The organization guard makes a concurrent move to
// another tenant a no-op.
func (r *GormUserRepository) LeaveOrganization(ctx context.Context, userID, organizationID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ownerIDs []string
		if err := tx.Model(&models.User{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("organization_id = ? AND role = ?", organizationID, authz.RoleOwner).
			Pluck("id", &ownerIDs).Error; err != nil {
			return err
		}
		if len(ownerIDs) == 1 && ownerIDs[0] == userID {
			return ErrLastOwner
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND organization_id = ?", userID, organizationID).
			Updates(map[string]interface{}{
				"organization_id": nil,
				"role":            authz.RoleGuest,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		taskIDs := tx.Unscoped().Model(&models.Task{}).Select("id").Where("organization_id = ?", organizationID)
		return tx.Where("user_id = ? AND task_id IN (?)", userID, taskIDs).
			Delete(&models.TaskAssignment{}).Error
	})
}
