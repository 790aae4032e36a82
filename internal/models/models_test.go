package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"user", RoleUser, false},
		{"", RoleUser, false},
		{"superuser", "", true},
		{"Admin", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
		} else {
			require.NoError(t, err, "input %q", tt.input)
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus("pending"))
	assert.True(t, ValidStatus("in-progress"))
	assert.True(t, ValidStatus("completed"))
	assert.False(t, ValidStatus("done"))
	assert.False(t, ValidStatus(""))
	assert.False(t, ValidStatus("in_progress"))
}

func TestValidPriority(t *testing.T) {
	assert.True(t, ValidPriority("low"))
	assert.True(t, ValidPriority("medium"))
	assert.True(t, ValidPriority("high"))
	assert.False(t, ValidPriority("urgent"))
	assert.False(t, ValidPriority(""))
}

func TestUserJSONHidesPassword(t *testing.T) {
	user := User{ID: 1, Email: "a@b.com", Password: "$2a$10$hash", Role: RoleUser}
	payload, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "hash")
	assert.NotContains(t, string(payload), "password")
}
