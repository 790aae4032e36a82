package config

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"

	"taskhub/internal/events"
)

var (
	// Global dependencies shared across handlers.
	DB          *sql.DB
	SecretKey   = []byte("secret")
	Validate    = validator.New()
	Ctx         = context.Background()
	RedisClient *redis.Client
	EventHub    *events.Hub
	UploadDir   = "uploads"
)
