package access_test

import (
	"fmt"
	"testing"

	access "github.com/carecal/go-access"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorShapes(t *testing.T) {
	cases := []struct {
		name     string
		err      *goerrors.Error
		category goerrors.Category
		textCode string
	}{
		{"invalid credentials", access.ErrInvalidCredentials, goerrors.CategoryAuth, "INVALID_CREDENTIALS"},
		{"token expired", access.ErrTokenExpired, goerrors.CategoryAuth, "TOKEN_EXPIRED"},
		{"token malformed", access.ErrTokenMalformed, goerrors.CategoryAuth, "TOKEN_MALFORMED"},
		{"invalid refresh token", access.ErrInvalidRefreshToken, goerrors.CategoryAuth, "INVALID_REFRESH_TOKEN"},
		{"posting access required", access.ErrPostingAccessRequired, goerrors.CategoryAuthz, "POSTING_ACCESS_REQUIRED"},
		{"admin required", access.ErrAdminRequired, goerrors.CategoryAuthz, "ADMIN_REQUIRED"},
		{"pending request exists", access.ErrPendingRequestExists, goerrors.CategoryConflict, "PENDING_REQUEST_EXISTS"},
		{"request already decided", access.ErrRequestAlreadyDecided, goerrors.CategoryConflict, "REQUEST_ALREADY_DECIDED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.category, tc.err.Category)
			assert.Equal(t, tc.textCode, tc.err.TextCode)
		})
	}
}

func TestIsTokenExpiredError(t *testing.T) {
	assert.True(t, access.IsTokenExpiredError(access.ErrTokenExpired))
	assert.True(t, access.IsTokenExpiredError(fmt.Errorf("request failed: %w", access.ErrTokenExpired)))

	assert.False(t, access.IsTokenExpiredError(nil))
	assert.False(t, access.IsTokenExpiredError(access.ErrTokenMalformed))
	assert.False(t, access.IsTokenExpiredError(fmt.Errorf("plain error")))
}

func TestIsMalformedError(t *testing.T) {
	assert.True(t, access.IsMalformedError(access.ErrTokenMalformed))
	assert.True(t, access.IsMalformedError(fmt.Errorf("request failed: %w", access.ErrTokenMalformed)))

	assert.False(t, access.IsMalformedError(nil))
	assert.False(t, access.IsMalformedError(access.ErrTokenExpired))
}
