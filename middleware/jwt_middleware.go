package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"coachflow/config"
	"coachflow/models"
	"coachflow/utils"
)

// Protected guards the admin API. It accepts a Bearer token or the
// access_token cookie, validates the claims against the admin row and
// stores the admin in the request context.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid authorization format",
				})
			}
			token = tokenParts[1]
		} else {
			token = c.Cookies("access_token")
			if token == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Authorization required",
				})
			}
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		var admin models.AdminUser
		if err := config.DB.First(&admin, claims.AdminID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Admin not found",
			})
		}

		if !admin.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Account is not active",
			})
		}

		// A password change bumps the version and orphans older tokens
		if claims.TokenVersion != admin.TokenVersion {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token version",
			})
		}

		c.Locals("admin", &admin)
		c.Locals("adminID", admin.ID)

		return c.Next()
	}
}
