package access

import (
	"context"
	"reflect"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type Auther struct {
	provider     IdentityProvider
	users        Users
	logger       Logger
	tokenService TokenService
	activity     ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, users Users, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		[]byte(opts.GetRefreshSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetRefreshExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		users:        users,
		logger:       defLogger{},
		tokenService: tokenService,
		activity:     noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink attaches an audit sink for login outcomes
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the default token service
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies credentials and issues an access/refresh token pair along
// with the authenticated user record.
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, *User, error) {
	identity, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Email:     NormalizeEmail(email),
		})
		return nil, nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return nil, nil, ErrInvalidCredentials
	}

	token, tokenExp, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login token generation error", "error", err)
		return nil, nil, err
	}

	refresh, refreshExp, err := s.tokenService.GenerateRefresh(identity.ID())
	if err != nil {
		s.logger.Error("Login refresh token generation error", "error", err)
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, identity.ID())
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user after login")
	}

	pair := &TokenPair{
		Token:            token,
		TokenExpiresAt:   tokenExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
		Email:     user.Email,
	})

	return pair, user, nil
}

// record writes an audit event, sink failures never block the caller
func (s *Auther) record(ctx context.Context, event ActivityEvent) {
	event.OccurredAt = time.Now()
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity record failed", "error", err, "event", string(event.EventType))
	}
}

// Refresh validates a refresh token and mints a new access token. The user is
// re-read so a deleted account cannot keep refreshing, and the new token
// carries the user's current role rather than whatever the old one said.
// The refresh token itself is returned unchanged, there is no rotation.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	userID, err := s.tokenService.ValidateRefresh(refreshToken)
	if err != nil {
		s.logger.Error("Refresh token validation failed", "error", err)
		return "", time.Time{}, err
	}

	identity, err := s.provider.FindIdentityByID(ctx, userID)
	if err != nil {
		s.logger.Error("Refresh user lookup failed", "error", err, "user_id", userID)
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	token, expiresAt, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Refresh token generation error", "error", err)
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

var _ Authenticator = (*Auther)(nil)
