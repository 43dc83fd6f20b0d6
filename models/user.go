package models

import (
	"time"

	"gorm.io/gorm"
)

// AdminUser represents a dashboard account
type AdminUser struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name string `json:"name"`

	// Account status
	IsActive     bool `gorm:"default:true" json:"is_active"`
	TokenVersion int  `gorm:"default:0" json:"-"` // bump to invalidate issued tokens

	LastLoginAt *time.Time `json:"last_login_at"`
}
