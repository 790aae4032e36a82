package handlers

import (
	"database/sql"
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskhub/internal/authz"
	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/pkg/logger"
)

// MaxAttachments caps how many files one create/update request may carry.
const MaxAttachments = 5

func validateFile(file *multipart.FileHeader) error {
	if file.Size > 5<<20 {
		return fiber.NewError(fiber.StatusBadRequest, "File size exceeds the limit of 5MB")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	allowedExts := map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".pdf": true,
		".doc": true, ".docx": true, ".txt": true,
	}
	if !allowedExts[ext] {
		return fiber.NewError(fiber.StatusBadRequest, "File type not allowed")
	}

	contentType := file.Header.Get("Content-Type")
	allowed := strings.Contains(contentType, "image") ||
		strings.Contains(contentType, "pdf") ||
		strings.Contains(contentType, "text") ||
		strings.Contains(contentType, "msword") ||
		strings.Contains(contentType, "officedocument")
	if !allowed {
		return fiber.NewError(fiber.StatusBadRequest, "File must be an image, PDF or document")
	}

	return nil
}

// attachedFiles pulls the "documents" multipart field, enforcing the count
// cap and per-file validation. A request without files yields an empty slice.
func attachedFiles(c *fiber.Ctx) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	files := form.File["documents"]
	if len(files) > MaxAttachments {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("At most %d files may be attached", MaxAttachments))
	}
	for _, file := range files {
		if err := validateFile(file); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// saveDocuments writes the uploaded files to the upload dir and records one
// document row per file inside the caller's transaction, so a failed insert
// rolls back with the task mutation it belongs to.
func saveDocuments(c *fiber.Ctx, tx *sql.Tx, taskID int, files []*multipart.FileHeader) ([]models.Document, error) {
	if len(files) == 0 {
		return nil, nil
	}

	uploadDir := config.UploadDir
	if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
		if err := os.MkdirAll(uploadDir, os.ModePerm); err != nil {
			return nil, err
		}
	}

	docs := make([]models.Document, 0, len(files))
	for _, file := range files {
		newFilename := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(file.Filename))
		filePath := path.Join(uploadDir, newFilename)
		if err := c.SaveFile(file, filePath); err != nil {
			return nil, err
		}

		doc := models.Document{
			OriginalName: file.Filename,
			Filename:     newFilename,
			Mimetype:     file.Header.Get("Content-Type"),
			Size:         file.Size,
			Filepath:     filePath,
			URL:          fmt.Sprintf("/uploads/%s", newFilename),
			TaskID:       taskID,
		}
		err := tx.QueryRow(
			`INSERT INTO documents (original_name, filename, mimetype, size, filepath, url, task_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
			doc.OriginalName, doc.Filename, doc.Mimetype, doc.Size, doc.Filepath, doc.URL, doc.TaskID,
		).Scan(&doc.ID, &doc.CreatedAt)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func fetchDocuments(db *sql.DB, taskID int) ([]models.Document, error) {
	rows, err := db.Query(
		`SELECT id, original_name, filename, mimetype, size, filepath, url, task_id, created_at
		 FROM documents WHERE task_id = $1 ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(&doc.ID, &doc.OriginalName, &doc.Filename, &doc.Mimetype,
			&doc.Size, &doc.Filepath, &doc.URL, &doc.TaskID, &doc.CreatedAt)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetDocumentsByTask lists attachment metadata for one task.
func GetDocumentsByTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(models.Role)

	taskID, err := c.ParamsInt("id")
	if err != nil {
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
		logger.SecurityLogger.Warn("Document list denied",
			zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	docs, err := fetchDocuments(config.DB, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching documents", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching documents",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Documents fetched successfully",
		"success": true,
		"status":  200,
		"data":    docs,
	})
}

// DownloadDocument streams the stored bytes for one document id.
func DownloadDocument(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(models.Role)

	docID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid document ID",
			"success": false,
			"status":  400,
		})
	}

	var doc models.Document
	var assignedTo int
	err = config.DB.QueryRow(
		`SELECT d.original_name, d.filepath, t.assigned_to
		 FROM documents d JOIN tasks t ON t.id = d.task_id
		 WHERE d.id = $1`, docID,
	).Scan(&doc.OriginalName, &doc.Filepath, &assignedTo)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Document not found",
			"success": false,
			"status":  404,
		})
	}
	if !authz.CanAccessTask(role, userID, assignedTo) {
		logger.SecurityLogger.Warn("Document download denied",
			zap.Int("user_id", userID), zap.Int("document_id", docID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	if _, err := os.Stat(doc.Filepath); err != nil {
		logger.ErrorLogger.Error("Stored file missing", zap.String("filepath", doc.Filepath), zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"message": "File not found",
			"success": false,
			"status":  404,
		})
	}

	return c.Download(doc.Filepath, doc.OriginalName)
}
