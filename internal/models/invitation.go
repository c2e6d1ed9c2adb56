package models

import (
	"time"

	"github.com/yukikurage/project-management-api/internal/authz"
	"gorm.io/gorm"
)

// Invitation is a single-use offer of membership. It is deleted when
// accepted; expiry is only checked at acceptance time.
type Invitation struct {
	ID             string     `gorm:"primarykey;type:varchar(26)" json:"id"`
	Email          string     `gorm:"type:varchar(255);index;not null" json:"email"`
	Role           authz.Role `gorm:"type:varchar(20);not null" json:"role"`
	Token          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	OrganizationID string     `gorm:"type:varchar(26);index;not null" json:"organization_id"`
	InviterID      string     `gorm:"type:varchar(26);not null" json:"inviter_id"`
	CreatedAt      time.Time  `json:"created_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Inviter      User         `gorm:"foreignKey:InviterID" json:"inviter,omitempty"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Expired reports whether the acceptance window has passed at now.
func (i Invitation) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(i.CreatedAt) > ttl
}
