package v1

import (
	"github.com/gofiber/fiber/v2"

	"taskhub/internal/api/v1/handlers"
	"taskhub/internal/middleware"
)

func RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Auth
	auth := api.Group("/auth")
	auth.Post("/register", handlers.Register)
	auth.Post("/login", handlers.Login)

	// Task
	task := api.Group("/task", middleware.RequireAuth)
	task.Post("/createTask", handlers.CreateTask)
	task.Get("/getAllTask", handlers.GetAllTask)
	task.Get("/getTaskById/:id", handlers.GetTaskById)
	task.Patch("/updateTask/:id", handlers.UpdateTask)
	task.Delete("/deleteTask/:id", handlers.DeleteTask)
	task.Get("/documents/download/:id", handlers.DownloadDocument)
	task.Get("/documents/:id", handlers.GetDocumentsByTask)

	// Admin user management
	admin := api.Group("/admin", middleware.RequireAuth, middleware.RequireAdmin)
	admin.Post("/createUser", handlers.CreateUser)
	admin.Get("/getAllUsers", handlers.GetAllUsers)
	admin.Get("/getUser/:id", handlers.GetUser)
	admin.Put("/updateUser/:id", handlers.UpdateUser)
	admin.Delete("/deleteUser/:id", handlers.DeleteUser)
}
