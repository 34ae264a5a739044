package access_test

import (
	"context"
	"testing"

	access "github.com/carecal/go-access"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserTracker implements access.UserTracker
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByEmail(ctx context.Context, email string) (*access.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.User), args.Error(1)
}

func (m *MockUserTracker) GetByID(ctx context.Context, id string) (*access.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.User), args.Error(1)
}

func (m *MockUserTracker) TrackSuccessfulLogin(ctx context.Context, user *access.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func trackedUser(t *testing.T, password string, role access.UserRole) *access.User {
	t.Helper()

	hash, err := access.HashPassword(password)
	require.NoError(t, err)

	return &access.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		Name:         "Tracked User",
		Role:         role,
		PasswordHash: hash,
	}
}

func TestUserProviderVerifyIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the identity for a matching password", func(t *testing.T) {
		user := trackedUser(t, "s3cret-pass", access.RoleDoctor)

		store := new(MockUserTracker)
		store.On("GetByEmail", ctx, "user@example.com").Return(user, nil)
		store.On("TrackSuccessfulLogin", ctx, user).Return(nil)

		provider := access.NewUserProvider(store)
		identity, err := provider.VerifyIdentity(ctx, "user@example.com", "s3cret-pass")

		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, "user@example.com", identity.Email())
		assert.Equal(t, "Tracked User", identity.Name())
		assert.Equal(t, "doctor", identity.Role())

		store.AssertExpectations(t)
	})

	t.Run("wrong password is invalid credentials", func(t *testing.T) {
		user := trackedUser(t, "s3cret-pass", access.RoleMember)

		store := new(MockUserTracker)
		store.On("GetByEmail", ctx, "user@example.com").Return(user, nil)

		provider := access.NewUserProvider(store)
		identity, err := provider.VerifyIdentity(ctx, "user@example.com", "not-the-password")

		assert.ErrorIs(t, err, access.ErrInvalidCredentials)
		assert.Nil(t, identity)

		// no timestamp write on failed login
		store.AssertNotCalled(t, "TrackSuccessfulLogin", mock.Anything, mock.Anything)
	})

	t.Run("unknown email is invalid credentials", func(t *testing.T) {
		store := new(MockUserTracker)
		store.On("GetByEmail", ctx, "ghost@example.com").
			Return(nil, goerrors.New("record not found", goerrors.CategoryNotFound))

		provider := access.NewUserProvider(store)
		identity, err := provider.VerifyIdentity(ctx, "ghost@example.com", "whatever")

		assert.ErrorIs(t, err, access.ErrInvalidCredentials)
		assert.Nil(t, identity)
	})

	t.Run("store failures are not masked as credentials errors", func(t *testing.T) {
		store := new(MockUserTracker)
		store.On("GetByEmail", ctx, "user@example.com").
			Return(nil, goerrors.New("connection refused", goerrors.CategoryInternal))

		provider := access.NewUserProvider(store)
		_, err := provider.VerifyIdentity(ctx, "user@example.com", "s3cret-pass")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, access.ErrInvalidCredentials)
	})

	t.Run("failed timestamp write does not block login", func(t *testing.T) {
		user := trackedUser(t, "s3cret-pass", access.RoleMember)

		store := new(MockUserTracker)
		store.On("GetByEmail", ctx, "user@example.com").Return(user, nil)
		store.On("TrackSuccessfulLogin", ctx, user).
			Return(goerrors.New("disk full", goerrors.CategoryInternal))

		provider := access.NewUserProvider(store).WithLogger(access.NewNopLogger())
		identity, err := provider.VerifyIdentity(ctx, "user@example.com", "s3cret-pass")

		require.NoError(t, err)
		assert.NotNil(t, identity)
	})

	t.Run("rejects users with unknown roles", func(t *testing.T) {
		user := trackedUser(t, "s3cret-pass", access.UserRole("superuser"))

		store := new(MockUserTracker)
		store.On("GetByEmail", ctx, "user@example.com").Return(user, nil)

		provider := access.NewUserProvider(store)
		_, err := provider.VerifyIdentity(ctx, "user@example.com", "s3cret-pass")

		assert.Error(t, err)
	})
}

func TestUserProviderFindIdentityByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the identity", func(t *testing.T) {
		user := trackedUser(t, "s3cret-pass", access.RoleAdmin)

		store := new(MockUserTracker)
		store.On("GetByID", ctx, user.ID.String()).Return(user, nil)

		provider := access.NewUserProvider(store)
		identity, err := provider.FindIdentityByID(ctx, user.ID.String())

		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, "admin", identity.Role())
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		store := new(MockUserTracker)
		store.On("GetByID", ctx, "missing").
			Return(nil, goerrors.New("record not found", goerrors.CategoryNotFound))

		provider := access.NewUserProvider(store)
		_, err := provider.FindIdentityByID(ctx, "missing")

		assert.Error(t, err)
	})
}
