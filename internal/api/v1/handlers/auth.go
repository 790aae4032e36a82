package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/pkg/crypto"
	"taskhub/pkg/logger"
	"taskhub/pkg/token"
)

// Register creates an account. The role field is parsed into the closed
// enum; anything other than admin/user (or empty) is a 400.
func Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		Role     string `json:"role"`
	}

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		logger.AuditLogger.Warn("Invalid role during register", zap.String("role", req.Role))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid role",
			"success": false,
			"status":  400,
		})
	}

	hashedPassword, err := crypto.HashPassword(req.Password)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error hashing password",
			"success": false,
			"status":  500,
		})
	}

	var userID int
	err = config.DB.QueryRow(
		"INSERT INTO users (email, password, role) VALUES ($1, $2, $3) RETURNING id",
		req.Email, hashedPassword, string(role)).Scan(&userID)
	if err != nil {
		// 23505 is the postgres unique violation class.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			logger.SecurityLogger.Warn("Duplicate email", zap.String("email", req.Email))
			return c.Status(400).JSON(fiber.Map{
				"message": "Email already registered",
				"success": false,
				"status":  400,
			})
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating user",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("User registered successfully", zap.Int("user_id", userID))
	return c.Status(201).JSON(fiber.Map{
		"message": "User created successfully",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"id":    userID,
			"email": req.Email,
			"role":  role,
		},
	})
}

// Login checks credentials and hands out a signed bearer token.
func Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	var user models.User
	err := config.DB.QueryRow(
		"SELECT id, email, password, role FROM users WHERE email = $1",
		req.Email).Scan(&user.ID, &user.Email, &user.Password, &user.Role)
	if err != nil {
		// Same message as the bad-password branch so callers cannot probe
		// which emails are registered.
		logger.SecurityLogger.Warn("User not found", zap.String("email", req.Email))
		return c.Status(401).JSON(fiber.Map{
			"message": "Invalid credentials",
			"success": false,
			"status":  401,
		})
	}

	if err := crypto.CheckPassword(user.Password, req.Password); err != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.String("email", req.Email))
		return c.Status(401).JSON(fiber.Map{
			"message": "Invalid credentials",
			"success": false,
			"status":  401,
		})
	}

	tokenString, err := token.Issue(config.SecretKey, user.ID, user.Email, user.Role)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error generating token",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID), zap.String("role", string(user.Role)))
	return c.JSON(fiber.Map{
		"message": "Login success",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"user_id": user.ID,
			"role":    user.Role,
			"token":   tokenString,
		},
	})
}
