package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/pkg/crypto"
	"taskhub/pkg/logger"
)

// User handlers. All routes here sit behind RequireAdmin.

func userCacheKey(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

// CreateUser lets an admin provision an account, role included.
func CreateUser(c *fiber.Ctx) error {
	type CreateUserRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		Role     string `json:"role"`
	}

	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create user", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during create user", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
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

	logger.AuditLogger.Info("User created by admin", zap.Int("user_id", userID))
	return c.Status(201).JSON(fiber.Map{
		"message": "User created successfully",
		"success": true,
		"status":  201,
		"user": fiber.Map{
			"id":    userID,
			"email": req.Email,
			"role":  role,
		},
	})
}

func GetAllUsers(c *fiber.Ctx) error {
	rows, err := config.DB.Query("SELECT id, email, role, created_at, updated_at FROM users ORDER BY id")
	if err != nil {
		logger.ErrorLogger.Error("Error fetching users", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching users",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.ID, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			logger.ErrorLogger.Error("Error scanning users", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning users",
				"success": false,
				"status":  500,
			})
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over users", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over users",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Users fetched successfully", zap.Int("count", len(users)))
	return c.JSON(fiber.Map{
		"message": "Users fetched successfully",
		"success": true,
		"status":  200,
		"data":    users,
	})
}

func GetUser(c *fiber.Ctx) error {
	targetID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid user ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	if cached, err := config.RedisClient.Get(config.Ctx, userCacheKey(targetID)).Result(); err == nil {
		var user models.User
		if err = json.Unmarshal([]byte(cached), &user); err == nil {
			return c.JSON(fiber.Map{
				"message": "User found (from cache)",
				"success": true,
				"status":  200,
				"data":    user,
			})
		}
	}

	var user models.User
	err = config.DB.QueryRow(
		"SELECT id, email, role, created_at, updated_at FROM users WHERE id = $1",
		targetID).Scan(&user.ID, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	userJSON, err := json.Marshal(user)
	if err == nil {
		config.RedisClient.SetEX(config.Ctx, userCacheKey(targetID), userJSON, time.Hour)
	}

	logger.AuditLogger.Info("User found", zap.Int("user_id", targetID))
	return c.JSON(fiber.Map{
		"message": "User found",
		"success": true,
		"status":  200,
		"data":    user,
	})
}

// UpdateUser applies a partial update. A missing password keeps the stored
// hash; the hash is never echoed back.
func UpdateUser(c *fiber.Ctx) error {
	targetID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid user ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	type UpdateUserRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update user", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if req.Role != "" {
		if _, err := models.ParseRole(req.Role); err != nil {
			return c.Status(400).JSON(fiber.Map{
				"message": "Invalid role",
				"success": false,
				"status":  400,
			})
		}
	}

	var exists int
	if err := config.DB.QueryRow("SELECT id FROM users WHERE id = $1", targetID).Scan(&exists); err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	hashedPassword := ""
	if req.Password != "" {
		hashedPassword, err = crypto.HashPassword(req.Password)
		if err != nil {
			logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error hashing password",
				"success": false,
				"status":  500,
			})
		}
	}

	_, err = config.DB.Exec(`
        UPDATE users
        SET email = COALESCE(NULLIF($1, ''), email),
			password = COALESCE(NULLIF($2, ''), password),
			role = COALESCE(NULLIF($3, ''), role),
			updated_at = CURRENT_TIMESTAMP
        WHERE id = $4`,
		req.Email, hashedPassword, req.Role, targetID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return c.Status(400).JSON(fiber.Map{
				"message": "Email already registered",
				"success": false,
				"status":  400,
			})
		}
		logger.ErrorLogger.Error("Error updating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating user",
			"success": false,
			"status":  500,
		})
	}

	var updatedUser models.User
	err = config.DB.QueryRow(
		"SELECT id, email, role, created_at, updated_at FROM users WHERE id = $1",
		targetID,
	).Scan(&updatedUser.ID, &updatedUser.Email, &updatedUser.Role, &updatedUser.CreatedAt, &updatedUser.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching updated user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching updated user",
			"success": false,
			"status":  500,
		})
	}

	config.RedisClient.Del(config.Ctx, userCacheKey(targetID))
	userJSON, err := json.Marshal(updatedUser)
	if err == nil {
		config.RedisClient.SetEX(config.Ctx, userCacheKey(targetID), userJSON, time.Hour)
	}

	logger.AuditLogger.Info("User updated successfully", zap.Int("user_id", targetID))
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"success": true,
		"status":  200,
		"user":    updatedUser,
	})
}

// DeleteUser removes the account. Tasks assigned to the user are deleted
// with their documents in the same transaction; tasks the user merely
// created survive with a NULL assigner.
func DeleteUser(c *fiber.Ctx) error {
	targetID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid user ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	var exists int
	if err := config.DB.QueryRow("SELECT id FROM users WHERE id = $1", targetID).Scan(&exists); err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	// Collect the task ids going away so their cache entries go too.
	taskIDs := []int{}
	rows, err := config.DB.Query("SELECT id FROM tasks WHERE assigned_to = $1", targetID)
	if err == nil {
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err == nil {
				taskIDs = append(taskIDs, id)
			}
		}
		rows.Close()
	}

	tx, err := config.DB.Begin()
	if err != nil {
		logger.ErrorLogger.Error("Error starting transaction", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting user",
			"success": false,
			"status":  500,
		})
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM documents WHERE task_id IN (SELECT id FROM tasks WHERE assigned_to = $1)",
		targetID); err != nil {
		logger.ErrorLogger.Error("Error deleting user documents", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting user",
			"success": false,
			"status":  500,
		})
	}
	if _, err := tx.Exec("DELETE FROM tasks WHERE assigned_to = $1", targetID); err != nil {
		logger.ErrorLogger.Error("Error deleting user tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting user",
			"success": false,
			"status":  500,
		})
	}
	if _, err := tx.Exec("DELETE FROM users WHERE id = $1", targetID); err != nil {
		logger.ErrorLogger.Error("Error deleting user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting user",
			"success": false,
			"status":  500,
		})
	}
	if err := tx.Commit(); err != nil {
		logger.ErrorLogger.Error("Error committing user delete", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting user",
			"success": false,
			"status":  500,
		})
	}

	config.RedisClient.Del(config.Ctx, userCacheKey(targetID))
	for _, id := range taskIDs {
		config.RedisClient.Del(config.Ctx, taskCacheKey(id))
	}

	logger.AuditLogger.Info("User deleted successfully",
		zap.Int("user_id", targetID), zap.Int("tasks_removed", len(taskIDs)))
	return c.Status(200).JSON(fiber.Map{
		"message": "User deleted successfully",
		"success": true,
		"status":  200,
	})
}
