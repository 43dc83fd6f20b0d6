package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateDefaultAdmin seeds the dashboard account on first boot. Existing
// accounts are never overwritten.
func CreateDefaultAdmin(db *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := AdminUser{
		Email:        email,
		PasswordHash: string(hash),
		Name:         "Admin",
		IsActive:     true,
	}
	return db.FirstOrCreate(&admin, "email = ?", admin.Email).Error
}
