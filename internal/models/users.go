package models

import (
	"time"

	"gorm.io/gorm"
)

// Users are the API accounts. Editors may change timecodes, viewers only follow playback.
type Users struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"not null" json:"-"` // Hidden from JSON
	Role         string         `gorm:"type:varchar(20);default:'viewer'" json:"role"` // viewer, editor, admin
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
