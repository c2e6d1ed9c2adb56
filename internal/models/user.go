package models

import (
	"time"

	"github.com/yukikurage/project-management-api/internal/authz"
	"gorm.io/gorm"
)

// User belongs to zero or one organization. Role only carries meaning while
// OrganizationID is set.
type User struct {
	ID             string     `gorm:"primarykey;type:varchar(26)" json:"id"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   *string    `gorm:"type:varchar(255)" json:"-"`
	GoogleID       *string    `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	Name           string     `gorm:"type:varchar(255);not null" json:"name"`
	Role           authz.Role `gorm:"type:varchar(20);not null;default:'GUEST'" json:"role"`
	OrganizationID *string    `gorm:"type:varchar(26);index" json:"organization_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	if u.Role == "" {
		u.Role = authz.RoleGuest
	}
	return nil
}

// Membership returns the authorization view of the user.
func (u User) Membership() authz.Membership {
	m := authz.Membership{UserID: u.ID, Role: u.Role}
	if u.OrganizationID != nil {
		m.OrganizationID = *u.OrganizationID
	}
	return m
}

// BelongsTo reports whether the user is a member of orgID.
func (u User) BelongsTo(orgID string) bool {
	return u.OrganizationID != nil && *u.OrganizationID == orgID
}
