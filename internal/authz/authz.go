// Package authz holds the ownership rule shared by every task-scoped endpoint.
package authz

import "taskhub/internal/models"

// CanAccessTask reports whether the caller may read or mutate a task.
// Admins may touch any task; everyone else only tasks assigned to them.
func CanAccessTask(role models.Role, callerID, assignedTo int) bool {
	return role == models.RoleAdmin || callerID == assignedTo
}

// ResolveAssignee applies the assignment rule on task creation: a non-admin
// always becomes the assignee, whatever assignedTo was submitted.
func ResolveAssignee(role models.Role, callerID, requested int) int {
	if role == models.RoleAdmin && requested != 0 {
		return requested
	}
	return callerID
}
