// Package token issues and verifies the bearer tokens used for sessions.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"taskhub/internal/models"
)

// Lifetime is how long an issued token stays valid.
const Lifetime = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Identity is the caller resolved from a verified token.
type Identity struct {
	ID    int
	Email string
	Role  models.Role
}

// Issue signs an HS256 token embedding the user's id, email and role.
func Issue(secret []byte, id int, email string, role models.Role) (string, error) {
	claims := jwt.MapClaims{
		"user_id": id,
		"email":   email,
		"role":    string(role),
		"exp":     time.Now().Add(Lifetime).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Verify parses and validates a token string. Any failure (bad signature,
// wrong algorithm, malformed claims, expiry) yields ErrInvalidToken.
func Verify(secret []byte, tokenString string) (Identity, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	email, ok := claims["email"].(string)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	role, err := models.ParseRole(roleStr)
	if err != nil || roleStr == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{ID: int(userID), Email: email, Role: role}, nil
}
