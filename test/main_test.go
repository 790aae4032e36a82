package test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"

	v1 "taskhub/internal/api/v1"
	"taskhub/internal/config"
	"taskhub/internal/events"
	"taskhub/internal/middleware"
	"taskhub/internal/repository"
	"taskhub/pkg/crypto"
	"taskhub/pkg/logger"
)

// TestMain brings up throwaway Postgres and Redis containers, wires the
// global dependencies and runs the suite against them.
func TestMain(m *testing.M) {
	os.Setenv("GO_ENV", "test")
	logger.InitLoggers()
	defer logger.SyncLoggers()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct docker pool: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to docker: %v", err)
	}
	pool.MaxWait = 2 * time.Minute

	pgResource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=taskhub",
			"POSTGRES_PASSWORD=taskhub",
			"POSTGRES_DB=taskhub_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start postgres: %v", err)
	}

	if err := pool.Retry(func() error {
		db, err := sql.Open("postgres", fmt.Sprintf(
			"host=localhost port=%s user=taskhub password=taskhub dbname=taskhub_test sslmode=disable",
			pgResource.GetPort("5432/tcp")))
		if err != nil {
			return err
		}
		if err := db.Ping(); err != nil {
			return err
		}
		config.DB = db
		return nil
	}); err != nil {
		log.Fatalf("Could not connect to postgres: %v", err)
	}

	redisResource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start redis: %v", err)
	}

	if err := pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{
			Addr: "localhost:" + redisResource.GetPort("6379/tcp"),
		})
		if err := client.Ping(config.Ctx).Err(); err != nil {
			return err
		}
		config.RedisClient = client
		return nil
	}); err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}

	repository.CreateTableIfNotExists(config.DB)

	uploadDir, err := os.MkdirTemp("", "taskhub-uploads")
	if err != nil {
		log.Fatalf("Could not create upload dir: %v", err)
	}
	config.UploadDir = uploadDir

	hub := events.NewHub()
	go hub.Run()
	config.EventHub = hub

	code := m.Run()

	config.DB.Close()
	config.RedisClient.Close()
	os.RemoveAll(uploadDir)
	if err := pool.Purge(pgResource); err != nil {
		log.Printf("Could not purge postgres: %v", err)
	}
	if err := pool.Purge(redisResource); err != nil {
		log.Printf("Could not purge redis: %v", err)
	}

	os.Exit(code)
}

// CreateTestApp builds the Fiber app with the production route table.
func CreateTestApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.ErrorHandler())
	v1.RegisterRoutes(app)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, token string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// RegisterAndLogin creates a fresh user through the API and returns its
// token and id.
func RegisterAndLogin(t *testing.T, app *fiber.App, email, password string) (string, int) {
	t.Helper()
	resp := postJSON(t, app, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, 201, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, app, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, 200, resp.StatusCode)
	result := decodeBody(t, resp)
	data := result["data"].(map[string]interface{})
	tok := data["token"].(string)
	require.NotEmpty(t, tok)
	return tok, int(data["user_id"].(float64))
}

// CreateTestAdmin inserts an admin row directly and logs it in.
func CreateTestAdmin(t *testing.T, app *fiber.App) (string, int, string) {
	t.Helper()
	email := fmt.Sprintf("admin_%d@example.com", time.Now().UnixNano())
	hashed, err := crypto.HashPassword("adminpass")
	require.NoError(t, err)

	var adminID int
	err = config.DB.QueryRow(
		"INSERT INTO users (email, password, role) VALUES ($1, $2, 'admin') RETURNING id",
		email, hashed,
	).Scan(&adminID)
	require.NoError(t, err)

	resp := postJSON(t, app, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "adminpass",
	})
	require.Equal(t, 200, resp.StatusCode)
	result := decodeBody(t, resp)
	tok := result["data"].(map[string]interface{})["token"].(string)
	require.NotEmpty(t, tok)
	return tok, adminID, email
}

type testFile struct {
	Name        string
	Content     string
	ContentType string
}

// newTaskRequest builds a multipart request the way the SPA submits task
// forms: plain fields plus up to five parts named "documents".
func newTaskRequest(t *testing.T, method, path, token string, fields map[string]string, files []testFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="documents"; filename="%s"`, file.Name))
		header.Set("Content-Type", file.ContentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.Content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
