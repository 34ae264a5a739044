package access

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	textCodeTokenExpired        = "TOKEN_EXPIRED"
	textCodeTokenMalformed      = "TOKEN_MALFORMED"
	textCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	textCodePostingAccess       = "POSTING_ACCESS_REQUIRED"
	textCodeAdminRequired       = "ADMIN_REQUIRED"
	textCodePendingRequest      = "PENDING_REQUEST_EXISTS"
	textCodeRequestDecided      = "REQUEST_ALREADY_DECIDED"
)

// ErrInvalidCredentials is returned for unknown emails and password mismatches
// alike, so callers cannot probe which accounts exist.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its expiration
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token fails signature or structural checks
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidRefreshToken is returned when a refresh token is invalid, expired,
// carries the wrong token_type tag, or references a user that no longer exists.
var ErrInvalidRefreshToken = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidRefreshToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrPostingAccessRequired is returned when the live user flag denies event posting
var ErrPostingAccessRequired = goerrors.New("posting access required", goerrors.CategoryAuthz).
	WithTextCode(textCodePostingAccess).
	WithCode(goerrors.CodeForbidden)

// ErrAdminRequired is returned when the live user role is not admin
var ErrAdminRequired = goerrors.New("admin access required", goerrors.CategoryAuthz).
	WithTextCode(textCodeAdminRequired).
	WithCode(goerrors.CodeForbidden)

// ErrPendingRequestExists is returned when a user already has a pending access request
var ErrPendingRequestExists = goerrors.New("a pending access request already exists", goerrors.CategoryConflict).
	WithTextCode(textCodePendingRequest).
	WithCode(goerrors.CodeConflict)

// ErrRequestAlreadyDecided is returned when deciding a request that is no longer pending
var ErrRequestAlreadyDecided = goerrors.New("access request already decided", goerrors.CategoryConflict).
	WithTextCode(textCodeRequestDecided).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return hasTextCode(err, textCodeTokenExpired)
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	return hasTextCode(err, textCodeTokenMalformed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
