package main

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"taskhub/configs"
	v1 "taskhub/internal/api/v1"
	"taskhub/internal/config"
	"taskhub/internal/events"
	"taskhub/internal/middleware"
	"taskhub/internal/repository"
	"taskhub/pkg/database"
	"taskhub/pkg/logger"
	"taskhub/pkg/token"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	cfg := configs.LoadConfig()
	config.SecretKey = []byte(cfg.JWTSecret)
	config.UploadDir = cfg.UploadDir

	config.DB = database.ConnectDB(cfg)
	defer config.DB.Close()
	logger.SystemLogger.Info("Database Connected")

	repository.CreateTableIfNotExists(config.DB)
	repository.CreateAdminUser(config.DB)

	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	app := fiber.New(fiber.Config{
		BodyLimit: 30 << 20, // five attachments at 5MB each, plus headroom
	})

	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	// Uploaded documents are public at their recorded URLs.
	app.Static("/uploads", cfg.UploadDir)

	v1.RegisterRoutes(app)

	// Task event feed. The token rides in a query parameter because
	// browsers cannot set headers on websocket upgrades.
	hub := events.NewHub()
	go hub.Run()
	config.EventHub = hub
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := token.Verify(config.SecretKey, c.Query("token")); err != nil {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	})
	app.Get("/ws/tasks", websocket.New(func(c *websocket.Conn) {
		client := &events.Client{Conn: c}
		hub.Register <- client
		defer func() {
			hub.Unregister <- client
		}()
		for {
			// Drain control frames; the feed is one-way.
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
