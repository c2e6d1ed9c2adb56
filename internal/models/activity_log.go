package models

import (
	"time"

	"gorm.io/gorm"
)

// ActivityLog is one entry of an organization's audit trail.
type ActivityLog struct {
	ID             string    `gorm:"primarykey;type:varchar(26)" json:"id"`
	OrganizationID string    `gorm:"type:varchar(26);index;not null" json:"organization_id"`
	ActorID        string    `gorm:"type:varchar(26);index;not null" json:"actor_id"`
	Action         string    `gorm:"type:varchar(100);not null" json:"action"`
	ResourceType   string    `gorm:"type:varchar(50)" json:"resource_type"`
	ResourceID     string    `gorm:"type:varchar(26)" json:"resource_id"`
	Metadata       string    `gorm:"type:text" json:"metadata"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`

	// Relations
	Actor User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
