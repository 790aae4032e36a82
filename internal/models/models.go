package models

import (
	"fmt"
	"time"
)

// Role is a closed set; unknown values are rejected at the request boundary.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole validates a role string. An empty value defaults to RoleUser.
func ParseRole(s string) (Role, error) {
	switch s {
	case "":
		return RoleUser, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleUser):
		return RoleUser, nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ValidPriority(s string) bool {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// User is the credential record. The password hash is never serialized.
type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserSummary is the shape embedded in task responses.
type UserSummary struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Task struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	Priority    Priority      `json:"priority"`
	DueDate     *time.Time    `json:"dueDate"`
	AssignedTo  int        `json:"assignedTo"`
	AssignedBy  *int       `json:"assignedBy"` // nil once the assigner account is gone
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Assignee  *UserSummary `json:"user,omitempty"`
	Assigner  *UserSummary `json:"assigner,omitempty"`
	Documents []Document   `json:"documents"`
}

// Document is attachment metadata; the bytes live on disk under the upload dir.
type Document struct {
	ID           int       `json:"id"`
	OriginalName string    `json:"originalName"`
	Filename     string    `json:"filename"`
	Mimetype     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	Filepath     string    `json:"filepath"`
	URL          string    `json:"url"`
	TaskID       int       `json:"taskId"`
	CreatedAt    time.Time `json:"createdAt"`
}
