package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskAssignment struct {
	TaskID    string         `gorm:"primarykey;type:varchar(26)" json:"task_id"`
	UserID    string         `gorm:"primarykey;type:varchar(26)" json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Task Task `gorm:"foreignKey:TaskID" json:"-"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
