package accessware_test

import (
	"context"
	"testing"

	"github.com/carecal/go-access"
	"github.com/carecal/go-access/middleware/accessware"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testSigningKey        = []byte("test-signing-key")
	testRefreshSigningKey = []byte("test-refresh-signing-key")
)

type tokenIdentity struct {
	id    string
	email string
	name  string
	role  string
}

func (i tokenIdentity) ID() string    { return i.id }
func (i tokenIdentity) Email() string { return i.email }
func (i tokenIdentity) Name() string  { return i.name }
func (i tokenIdentity) Role() string  { return i.role }

type stubUserFinder struct {
	user *access.User
	err  error
}

func (s stubUserFinder) GetByID(ctx context.Context, id string) (*access.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func newTestTokenService() access.TokenService {
	return access.NewTokenService(
		testSigningKey,
		testRefreshSigningKey,
		24,
		168,
		"test-issuer",
		jwt.ClaimStrings{"test-audience"},
		access.NewNopLogger(),
	)
}

func passthroughErrorHandler(ctx router.Context, err error) error {
	return err
}

func newAuthedContext(token string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + token
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Locals", "user", mock.Anything).Return(nil)
	ctx.On("Locals", "claims", mock.Anything).Return(nil)
	ctx.On("Context").Return(context.Background())
	return ctx
}

func TestNewAttachesLiveUser(t *testing.T) {
	service := newTestTokenService()
	userID := uuid.New()

	liveUser := &access.User{
		ID:               userID,
		Email:            "doc@example.com",
		Name:             "Doc",
		Role:             access.RoleDoctor,
		HasPostingAccess: true,
	}

	token, _, err := service.Generate(tokenIdentity{
		id:    userID.String(),
		email: "doc@example.com",
		role:  "doctor",
	})
	require.NoError(t, err)

	middleware := accessware.New(accessware.Config{
		TokenValidator: service,
		UserFinder:     stubUserFinder{user: liveUser},
		ErrorHandler:   passthroughErrorHandler,
	})
	handler := middleware(func(ctx router.Context) error { return nil })

	ctx := newAuthedContext(token)

	var stdCtx context.Context
	ctx.On("SetContext", mock.Anything).Run(func(args mock.Arguments) {
		stdCtx = args.Get(0).(context.Context)
	}).Return()

	err = handler(ctx)

	require.NoError(t, err)
	assert.True(t, ctx.NextCalled, "default success handler should call Next")

	stored, ok := ctx.LocalsMock["user"].(*access.User)
	require.True(t, ok)
	assert.Equal(t, liveUser, stored)

	claims, ok := ctx.LocalsMock["claims"].(access.AuthClaims)
	require.True(t, ok)
	assert.Equal(t, userID.String(), claims.UserID())
	assert.Equal(t, "doctor", claims.Role())

	require.NotNil(t, stdCtx)
	ctxUser, ok := access.FromContext(stdCtx)
	require.True(t, ok)
	assert.Equal(t, liveUser, ctxUser)

	ctxClaims, ok := access.GetClaims(stdCtx)
	require.True(t, ok)
	assert.Equal(t, userID.String(), ctxClaims.UserID())
}

func TestNewRejectsBadTokens(t *testing.T) {
	service := newTestTokenService()
	userID := uuid.New()
	liveUser := &access.User{ID: userID, Role: access.RoleMember}

	middleware := accessware.New(accessware.Config{
		TokenValidator: service,
		UserFinder:     stubUserFinder{user: liveUser},
		ErrorHandler:   passthroughErrorHandler,
	})
	handler := middleware(func(ctx router.Context) error { return nil })

	t.Run("missing header", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("")

		err := handler(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, accessware.ErrMissingOrMalformed)
		assert.False(t, ctx.NextCalled)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Basic dXNlcjpwYXNz")

		err := handler(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, accessware.ErrMissingOrMalformed)
	})

	t.Run("garbage token", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer not.a.token")

		err := handler(ctx)

		require.Error(t, err)
		assert.True(t, access.IsMalformedError(err))
	})

	t.Run("expired token", func(t *testing.T) {
		expired := access.NewTokenService(
			testSigningKey,
			testRefreshSigningKey,
			-1,
			168,
			"test-issuer",
			jwt.ClaimStrings{"test-audience"},
			access.NewNopLogger(),
		)
		token, _, err := expired.Generate(tokenIdentity{id: userID.String(), role: "member"})
		require.NoError(t, err)

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)

		err = handler(ctx)

		require.Error(t, err)
		assert.True(t, access.IsTokenExpiredError(err))
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		refresh, _, err := service.GenerateRefresh(userID.String())
		require.NoError(t, err)

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer " + refresh)

		err = handler(ctx)

		require.Error(t, err)
	})

	t.Run("deleted user fails closed", func(t *testing.T) {
		token, _, err := service.Generate(tokenIdentity{id: userID.String(), role: "member"})
		require.NoError(t, err)

		gone := accessware.New(accessware.Config{
			TokenValidator: service,
			UserFinder:     stubUserFinder{err: goerrors.New("user not found", goerrors.CategoryNotFound)},
			ErrorHandler:   passthroughErrorHandler,
		})
		goneHandler := gone(func(ctx router.Context) error { return nil })

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
		ctx.On("Context").Return(context.Background())

		err = goneHandler(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, access.ErrInvalidCredentials)
		assert.False(t, ctx.NextCalled)
	})
}

func TestNewHonorsFilter(t *testing.T) {
	service := newTestTokenService()

	middleware := accessware.New(accessware.Config{
		TokenValidator: service,
		UserFinder:     stubUserFinder{},
		ErrorHandler:   passthroughErrorHandler,
		Filter: func(ctx router.Context) bool {
			return true
		},
	})
	handler := middleware(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	err := handler(ctx)

	require.NoError(t, err)
	assert.True(t, ctx.NextCalled, "filtered requests skip authentication")
}

func TestRequirePostingAccess(t *testing.T) {
	middleware := accessware.RequirePostingAccess(accessware.Config{
		ErrorHandler: passthroughErrorHandler,
	})

	t.Run("passes users with posting access", func(t *testing.T) {
		called := false
		handler := middleware(func(ctx router.Context) error {
			called = true
			return nil
		})

		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = &access.User{
			ID:               uuid.New(),
			Role:             access.RoleDoctor,
			HasPostingAccess: true,
		}

		err := handler(ctx)

		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("rejects users without posting access", func(t *testing.T) {
		handler := middleware(func(ctx router.Context) error {
			t.Fatal("handler should not run")
			return nil
		})

		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = &access.User{ID: uuid.New(), Role: access.RoleMember}

		err := handler(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, access.ErrPostingAccessRequired)
	})

	t.Run("rejects when authentication never ran", func(t *testing.T) {
		handler := middleware(func(ctx router.Context) error {
			t.Fatal("handler should not run")
			return nil
		})

		ctx := router.NewMockContext()

		err := handler(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, accessware.ErrMissingOrMalformed)
	})
}

func TestRequireAdmin(t *testing.T) {
	middleware := accessware.RequireAdmin(accessware.Config{
		ErrorHandler: passthroughErrorHandler,
	})

	t.Run("passes admins", func(t *testing.T) {
		called := false
		handler := middleware(func(ctx router.Context) error {
			called = true
			return nil
		})

		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = &access.User{
			ID:               uuid.New(),
			Role:             access.RoleAdmin,
			HasPostingAccess: true,
		}

		err := handler(ctx)

		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("rejects non admins even with posting access", func(t *testing.T) {
		handler := middleware(func(ctx router.Context) error {
			t.Fatal("handler should not run")
			return nil
		})

		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = &access.User{
			ID:               uuid.New(),
			Role:             access.RoleDoctor,
			HasPostingAccess: true,
		}

		err := handler(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, access.ErrAdminRequired)
	})

	t.Run("rejects when authentication never ran", func(t *testing.T) {
		handler := middleware(func(ctx router.Context) error {
			t.Fatal("handler should not run")
			return nil
		})

		ctx := router.NewMockContext()

		err := handler(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, accessware.ErrMissingOrMalformed)
	})
}

func TestGetExtractors(t *testing.T) {
	t.Run("parses a multi source lookup", func(t *testing.T) {
		extractors := accessware.GetExtractors("header:Authorization,query:auth_token,cookie:access_token")
		assert.Len(t, extractors, 3)
	})

	t.Run("query extractor reads the query string", func(t *testing.T) {
		extractors := accessware.GetExtractors("query:auth_token")
		require.Len(t, extractors, 1)

		ctx := router.NewMockContext()
		ctx.QueriesM["auth_token"] = "raw-token"

		token, err := extractors[0](ctx)
		require.NoError(t, err)
		assert.Equal(t, "raw-token", token)
	})

	t.Run("header extractor enforces the scheme", func(t *testing.T) {
		extractors := accessware.GetExtractors("header:Authorization", "Bearer")
		require.Len(t, extractors, 1)

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Token raw-token")

		_, err := extractors[0](ctx)
		assert.ErrorIs(t, err, accessware.ErrMissingOrMalformed)
	})
}
