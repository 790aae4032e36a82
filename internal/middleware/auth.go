package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/pkg/logger"
	"taskhub/pkg/token"
)

// RequireAuth verifies the bearer token and stores the caller's identity
// in locals for the handlers downstream.
func RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "No token provided",
			"success": false,
			"status":  401,
		})
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid token format",
			"success": false,
			"status":  401,
		})
	}

	identity, err := token.Verify(config.SecretKey, parts[1])
	if err != nil {
		logger.SecurityLogger.Warn("Token verification failed", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid token",
			"success": false,
			"status":  401,
		})
	}

	c.Locals("userID", identity.ID)
	c.Locals("email", identity.Email)
	c.Locals("role", identity.Role)
	return c.Next()
}

// RequireAdmin gates admin-only routes. Must run after RequireAuth.
func RequireAdmin(c *fiber.Ctx) error {
	role := c.Locals("role").(models.Role)
	if role != models.RoleAdmin {
		logger.SecurityLogger.Warn("Admin route denied",
			zap.Int("user_id", c.Locals("userID").(int)),
			zap.String("role", string(role)),
			zap.String("url", c.OriginalURL()),
		)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}
	return c.Next()
}
