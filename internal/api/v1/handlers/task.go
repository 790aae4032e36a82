package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskhub/internal/authz"
	"taskhub/internal/config"
	"taskhub/internal/events"
	"taskhub/internal/models"
	"taskhub/pkg/logger"
)

// parseDueDate accepts RFC3339 timestamps or plain dates. The empty string
// means "not supplied".
func parseDueDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid dueDate format")
	}
	return &t, nil
}

func fetchUserSummary(db *sql.DB, id int) *models.UserSummary {
	var u models.UserSummary
	err := db.QueryRow("SELECT id, email, role FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Email, &u.Role)
	if err != nil {
		return nil
	}
	return &u
}

// loadTask reads one task row with its assignee, assigner and documents.
func loadTask(db *sql.DB, taskID int) (models.Task, error) {
	var task models.Task
	var dueDate sql.NullTime
	var assignedBy sql.NullInt64
	err := db.QueryRow(
		`SELECT id, title, description, status, priority, due_date, assigned_to, assigned_by, created_at, updated_at
		 FROM tasks WHERE id = $1`, taskID,
	).Scan(&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority,
		&dueDate, &task.AssignedTo, &assignedBy, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return task, err
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if assignedBy.Valid {
		by := int(assignedBy.Int64)
		task.AssignedBy = &by
		task.Assigner = fetchUserSummary(db, by)
	}
	task.Assignee = fetchUserSummary(db, task.AssignedTo)

	docs, err := fetchDocuments(db, taskID)
	if err != nil {
		return task, err
	}
	task.Documents = docs
	return task, nil
}

func taskCacheKey(taskID int) string {
	return fmt.Sprintf("task:%d", taskID)
}

func cacheTask(task models.Task) {
	taskJSON, err := json.Marshal(task)
	if err == nil {
		config.RedisClient.SetEX(config.Ctx, taskCacheKey(task.ID), taskJSON, time.Hour)
	}
}

// CreateTask persists a task and its attachments in one transaction.
// A non-admin caller always becomes the assignee, whatever was submitted.
func CreateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(models.Role)

	type TaskRequest struct {
		Title       string `json:"title" form:"title" validate:"required"`
		Description string `json:"description" form:"description"`
		Status      string `json:"status" form:"status"`
		Priority    string `json:"priority" form:"priority"`
		DueDate     string `json:"dueDate" form:"dueDate"`
		AssignedTo  int    `json:"assignedTo" form:"assignedTo"`
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	if req.Status == "" {
		req.Status = string(models.StatusPending)
	}
	if !models.ValidStatus(req.Status) {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid status",
			"success": false,
			"status":  400,
		})
	}
	if req.Priority == "" {
		req.Priority = string(models.PriorityMedium)
	}
	if !models.ValidPriority(req.Priority) {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid priority",
			"success": false,
			"status":  400,
		})
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid dueDate format",
			"success": false,
			"status":  400,
		})
	}

	assignedTo := authz.ResolveAssignee(role, userID, req.AssignedTo)
	if assignedTo != userID {
		var exists int
		if err := config.DB.QueryRow("SELECT id FROM users WHERE id = $1", assignedTo).Scan(&exists); err != nil {
			return c.Status(400).JSON(fiber.Map{
				"message": "Assignee does not exist",
				"success": false,
				"status":  400,
			})
		}
	}

	files, err := attachedFiles(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": err.Error(),
			"success": false,
			"status":  400,
		})
	}

	tx, err := config.DB.Begin()
	if err != nil {
		logger.ErrorLogger.Error("Error starting transaction", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}
	defer tx.Rollback()

	var taskID int
	err = tx.QueryRow(
		`INSERT INTO tasks (title, description, status, priority, due_date, assigned_to, assigned_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		req.Title, req.Description, req.Status, req.Priority, dueDate, assignedTo, userID,
	).Scan(&taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}

	if _, err := saveDocuments(c, tx, taskID, files); err != nil {
		logger.ErrorLogger.Error("Error saving documents", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error saving documents",
			"success": false,
			"status":  500,
		})
	}

	if err := tx.Commit(); err != nil {
		logger.ErrorLogger.Error("Error committing task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}

	task, err := loadTask(config.DB, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching created task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching created task",
			"success": false,
			"status":  500,
		})
	}

	config.EventHub.Publish(events.TaskCreated, taskID)
	logger.AuditLogger.Info("Task created successfully",
		zap.Int("task_id", taskID), zap.Int("assigned_to", assignedTo), zap.Int("assigned_by", userID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Task created successfully",
		"success": true,
		"status":  201,
		"task":    task,
	})
}

// GetAllTask lists tasks scoped by role: admins see everything, everyone
// else only their own assignments.
func GetAllTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(models.Role)

	var rows *sql.Rows
	var err error
	if role == models.RoleAdmin {
		rows, err = config.DB.Query(
			`SELECT id, title, description, status, priority, due_date, assigned_to, assigned_by, created_at, updated_at
			 FROM tasks ORDER BY created_at DESC`)
	} else {
		rows, err = config.DB.Query(
			`SELECT id, title, description, status, priority, due_date, assigned_to, assigned_by, created_at, updated_at
			 FROM tasks WHERE assigned_to = $1 ORDER BY created_at DESC`, userID)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		var dueDate sql.NullTime
		var assignedBy sql.NullInt64
		err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority,
			&dueDate, &task.AssignedTo, &assignedBy, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			logger.ErrorLogger.Error("Error scanning tasks", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning tasks",
				"success": false,
				"status":  500,
			})
		}
		if dueDate.Valid {
			task.DueDate = &dueDate.Time
		}
		if assignedBy.Valid {
			by := int(assignedBy.Int64)
			task.AssignedBy = &by
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over tasks",
			"success": false,
			"status":  500,
		})
	}

	// Join in assignee/assigner summaries and documents after the row scan
	// so only one statement holds the connection at a time.
	for i := range tasks {
		tasks[i].Assignee = fetchUserSummary(config.DB, tasks[i].AssignedTo)
		if tasks[i].AssignedBy != nil {
			tasks[i].Assigner = fetchUserSummary(config.DB, *tasks[i].AssignedBy)
		}
		docs, err := fetchDocuments(config.DB, tasks[i].ID)
		if err != nil {
			logger.ErrorLogger.Error("Error fetching documents", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error fetching documents",
				"success": false,
				"status":  500,
			})
		}
		tasks[i].Documents = docs
	}

	logger.AuditLogger.Info("Tasks fetched successfully", zap.Int("count", len(tasks)))
	return c.JSON(fiber.Map{
		"message": "Tasks fetched successfully",
		"success": true,
		"status":  200,
		"data":    tasks,
	})
}

// GetTaskById serves a single task, preferring the Redis cache. The
// ownership check runs on the cached copy too so a stale cache never
// widens visibility.
func GetTaskById(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(models.Role)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	if cached, err := config.RedisClient.Get(config.Ctx, taskCacheKey(taskID)).Result(); err == nil {
		var task models.Task
		if err = json.Unmarshal([]byte(cached), &task); err == nil {
			if !authz.CanAccessTask(role, userID, task.AssignedTo) {
				logger.SecurityLogger.Warn("Task access denied",
					zap.Int("user_id", userID), zap.Int("task_id", taskID))
				return c.Status(403).JSON(fiber.Map{
					"message": "Forbidden",
					"success": false,
					"status":  403,
				})
			}
			return c.JSON(fiber.Map{
				"message": "Task found (from cache)",
				"success": true,
				"status":  200,
				"data":    task,
			})
		}
	}

	task, err := loadTask(config.DB, taskID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}
	if !authz.CanAccessTask(role, userID, task.AssignedTo) {
		logger.SecurityLogger.Warn("Task access denied",
			zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	cacheTask(task)

	logger.AuditLogger.Info("Task found", zap.Int("task_id", taskID))
	return c.JSON(fiber.Map{
		"message": "Task found",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

// UpdateTask applies a partial update. Empty fields keep their stored
// values; new attachments are appended, never replacing existing ones.
func UpdateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(models.Role)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	var assignedTo int
	err = config.DB.QueryRow("SELECT assigned_to FROM tasks WHERE id = $1", taskID).Scan(&assignedTo)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}
	if !authz.CanAccessTask(role, userID, assignedTo) {
		logger.SecurityLogger.Warn("Task update denied",
			zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	type UpdateTaskRequest struct {
		Title       string `json:"title" form:"title"`
		Description string `json:"description" form:"description"`
		Status      string `json:"status" form:"status"`
		Priority    string `json:"priority" form:"priority"`
		DueDate     string `json:"dueDate" form:"dueDate"`
		AssignedTo  int    `json:"assignedTo" form:"assignedTo"`
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if req.Status != "" && !models.ValidStatus(req.Status) {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid status",
			"success": false,
			"status":  400,
		})
	}
	if req.Priority != "" && !models.ValidPriority(req.Priority) {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid priority",
			"success": false,
			"status":  400,
		})
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid dueDate format",
			"success": false,
			"status":  400,
		})
	}

	// Reassignment is an admin-only move.
	newAssignee := 0
	if req.AssignedTo != 0 && req.AssignedTo != assignedTo {
		if role != models.RoleAdmin {
			logger.SecurityLogger.Warn("Reassignment denied",
				zap.Int("user_id", userID), zap.Int("task_id", taskID))
			return c.Status(403).JSON(fiber.Map{
				"message": "Forbidden",
				"success": false,
				"status":  403,
			})
		}
		var exists int
		if err := config.DB.QueryRow("SELECT id FROM users WHERE id = $1", req.AssignedTo).Scan(&exists); err != nil {
			return c.Status(400).JSON(fiber.Map{
				"message": "Assignee does not exist",
				"success": false,
				"status":  400,
			})
		}
		newAssignee = req.AssignedTo
	}

	files, err := attachedFiles(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": err.Error(),
			"success": false,
			"status":  400,
		})
	}

	tx, err := config.DB.Begin()
	if err != nil {
		logger.ErrorLogger.Error("Error starting transaction", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating task",
			"success": false,
			"status":  500,
		})
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE tasks
		SET title = COALESCE(NULLIF($1, ''), title),
			description = COALESCE(NULLIF($2, ''), description),
			status = COALESCE(NULLIF($3, ''), status),
			priority = COALESCE(NULLIF($4, ''), priority),
			due_date = COALESCE($5, due_date),
			assigned_to = COALESCE(NULLIF($6, 0), assigned_to),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $7`,
		req.Title, req.Description, req.Status, req.Priority, dueDate, newAssignee, taskID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating task",
			"success": false,
			"status":  500,
		})
	}

	if _, err := saveDocuments(c, tx, taskID, files); err != nil {
		logger.ErrorLogger.Error("Error saving documents", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error saving documents",
			"success": false,
			"status":  500,
		})
	}

	if err := tx.Commit(); err != nil {
		logger.ErrorLogger.Error("Error committing task update", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating task",
			"success": false,
			"status":  500,
		})
	}

	updatedTask, err := loadTask(config.DB, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching updated task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching updated task",
			"success": false,
			"status":  500,
		})
	}

	config.RedisClient.Del(config.Ctx, taskCacheKey(taskID))
	cacheTask(updatedTask)

	config.EventHub.Publish(events.TaskUpdated, taskID)
	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID))
	return c.Status(200).JSON(fiber.Map{
		"message":     "Task updated successfully",
		"success":     true,
		"status":      200,
		"updatedTask": updatedTask,
	})
}

// DeleteTask removes the task and its document rows in one transaction,
// documents first.
func DeleteTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(models.Role)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	var assignedTo int
	err = config.DB.QueryRow("SELECT assigned_to FROM tasks WHERE id = $1", taskID).Scan(&assignedTo)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}
	if !authz.CanAccessTask(role, userID, assignedTo) {
		logger.SecurityLogger.Warn("Task delete denied",
			zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	tx, err := config.DB.Begin()
	if err != nil {
		logger.ErrorLogger.Error("Error starting transaction", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM documents WHERE task_id = $1", taskID); err != nil {
		logger.ErrorLogger.Error("Error deleting documents", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}
	if _, err := tx.Exec("DELETE FROM tasks WHERE id = $1", taskID); err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}
	if err := tx.Commit(); err != nil {
		logger.ErrorLogger.Error("Error committing task delete", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}

	config.RedisClient.Del(config.Ctx, taskCacheKey(taskID))

	config.EventHub.Publish(events.TaskDeleted, taskID)
	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID))
	return c.Status(200).JSON(fiber.Map{
		"message": "Task deleted successfully",
		"success": true,
		"status":  200,
	})
}
