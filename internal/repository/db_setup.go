package repository

import (
	"database/sql"
	"log"

	"taskhub/pkg/crypto"
)

// CreateTableIfNotExists bootstraps the schema. Tasks assigned to a deleted
// user go with it; tasks merely created by them keep their rows with a NULL
// assigner.
func CreateTableIfNotExists(db *sql.DB) {
	query := `
CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    role VARCHAR(255) NOT NULL DEFAULT 'user',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
    id SERIAL PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT,
    status VARCHAR(255) NOT NULL DEFAULT 'pending',
    priority VARCHAR(255) NOT NULL DEFAULT 'medium',
    due_date TIMESTAMP,
    assigned_to INT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    assigned_by INT REFERENCES users (id) ON DELETE SET NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
    id SERIAL PRIMARY KEY,
    original_name VARCHAR(255) NOT NULL,
    filename VARCHAR(255) NOT NULL,
    mimetype VARCHAR(255) NOT NULL,
    size BIGINT NOT NULL,
    filepath VARCHAR(512) NOT NULL,
    url VARCHAR(512) NOT NULL,
    task_id INT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error creating tables: %v", err)
	}
}

// CreateAdminUser seeds a bootstrap admin account.
func CreateAdminUser(db *sql.DB) {
	hashedPassword, err := crypto.HashPassword("admin")
	if err != nil {
		log.Fatalf("Error hashing password: %v", err)
	}

	query := "INSERT INTO users (email, password, role) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING"
	_, err = db.Exec(query, "admin@mail.com", hashedPassword, "admin")
	if err != nil {
		log.Fatalf("Error inserting admin user: %v", err)
	}
}

func DeleteAllTable(db *sql.DB) {
	query := `
    DROP TABLE IF EXISTS documents;
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS users;
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error deleting tables: %v", err)
	}
}
