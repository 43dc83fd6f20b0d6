package controller

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"coachflow/models"
	"coachflow/utils"
)

// AuthController handles admin dashboard authentication
type AuthController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{
		DB:     db,
		Logger: log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /auth/login
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input loginInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var admin models.AdminUser
	err := ac.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&admin).Error
	if err != nil {
		// Same response for unknown email and bad password
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}
	if !admin.IsActive {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Account disabled", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(input.Password)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}

	accessToken, refreshToken, err := utils.GenerateJWTToken(&admin)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate tokens", err)
	}

	ac.DB.Model(&admin).Update("last_login_at", time.Now())
	ac.Logger.Printf("Admin %s logged in", admin.Email)

	return c.JSON(fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"admin": fiber.Map{
			"id":    admin.ID,
			"email": admin.Email,
			"name":  admin.Name,
		},
	})
}

type refreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshToken handles POST /auth/refresh
func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	var input refreshInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	accessToken, refreshToken, err := utils.RefreshTokens(input.RefreshToken)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", nil)
	}

	return c.JSON(fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

// GetCurrentAdmin handles GET /auth/me
func (ac *AuthController) GetCurrentAdmin(c *fiber.Ctx) error {
	admin := c.Locals("admin").(*models.AdminUser)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"id":            admin.ID,
		"email":         admin.Email,
		"name":          admin.Name,
		"last_login_at": admin.LastLoginAt,
	}))
}

type changePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=10"`
}

// ChangePassword handles POST /auth/change-password. Bumping the token
// version invalidates every token issued before the change.
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	admin := c.Locals("admin").(*models.AdminUser)

	var input changePasswordInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Current password is incorrect", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	if err := ac.DB.Model(admin).Updates(map[string]interface{}{
		"password_hash": string(hash),
		"token_version": admin.TokenVersion + 1,
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update password", err)
	}

	ac.Logger.Printf("Admin %s changed their password", admin.Email)
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Password updated, please log in again"}))
}
