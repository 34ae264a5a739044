package access_test

import (
	"encoding/json"
	"testing"

	access "github.com/carecal/go-access"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessRequestIsDecided(t *testing.T) {
	assert.False(t, (&access.AccessRequest{Status: access.RequestStatusPending}).IsDecided())
	assert.True(t, (&access.AccessRequest{Status: access.RequestStatusApproved}).IsDecided())
	assert.True(t, (&access.AccessRequest{Status: access.RequestStatusDenied}).IsDecided())

	var missing *access.AccessRequest
	assert.False(t, missing.IsDecided())
}

func TestUserJSONNeverLeaksPasswordHash(t *testing.T) {
	user := &access.User{
		ID:           uuid.New(),
		Email:        "leak@example.com",
		Name:         "Leak Check",
		Role:         access.RoleMember,
		PasswordHash: "super-secret-hash",
	}

	payload, err := json.Marshal(user)
	require.NoError(t, err)

	assert.NotContains(t, string(payload), "super-secret-hash")
	assert.NotContains(t, string(payload), "password")
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", access.NormalizeEmail("  User@Example.COM "))
	assert.Equal(t, "user@example.com", access.NormalizeEmail("user@example.com"))
	assert.Equal(t, "", access.NormalizeEmail("   "))
}
