package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "verifying", StateVerifying.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}

func TestRestoreWithoutStoredTokens(t *testing.T) {
	api := newFakeAPI()
	c, _ := newTestClient(t, api)

	state, err := c.Restore(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)
	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Equal(t, 0, api.meHits, "no stored tokens means no network traffic")
}

func TestRestoreWithValidToken(t *testing.T) {
	api := newFakeAPI()
	c, store := newTestClient(t, api)

	require.NoError(t, store.Save(&StoredSession{
		Token:        "access-token",
		RefreshToken: "refresh-token",
	}))

	state, err := c.Restore(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	require.NotNil(t, c.User())
	assert.Equal(t, "user@example.com", c.User().Email)
	assert.Equal(t, 0, api.refreshHits)

	session, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, session.User, "verified user is persisted alongside the tokens")
	assert.Equal(t, "user@example.com", session.User.Email)
}

func TestRestoreRefreshesStaleToken(t *testing.T) {
	api := newFakeAPI()
	c, store := newTestClient(t, api)

	require.NoError(t, store.Save(&StoredSession{
		Token:        "stale-token",
		RefreshToken: "refresh-token",
	}))

	state, err := c.Restore(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, 1, api.refreshHits)
	assert.Equal(t, 2, api.meHits, "verify, refresh, verify again")

	session, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "minted-token", session.Token)
	assert.Equal(t, "refresh-token", session.RefreshToken, "refresh tokens are not rotated")
}

func TestRestoreFailsClosed(t *testing.T) {
	t.Run("both tokens stale", func(t *testing.T) {
		api := newFakeAPI()
		c, store := newTestClient(t, api)

		require.NoError(t, store.Save(&StoredSession{
			Token:        "stale-token",
			RefreshToken: "stale-refresh",
		}))

		state, err := c.Restore(context.Background())

		require.Error(t, err)
		assert.Equal(t, StateFailed, state)
		assert.Nil(t, c.User())

		session, loadErr := store.Load()
		require.NoError(t, loadErr)
		assert.False(t, session.HasTokens(), "failed recovery purges the store")
	})

	t.Run("stale access token and no refresh token", func(t *testing.T) {
		api := newFakeAPI()
		c, store := newTestClient(t, api)

		require.NoError(t, store.Save(&StoredSession{Token: "stale-token"}))

		state, err := c.Restore(context.Background())

		require.Error(t, err)
		assert.Equal(t, StateFailed, state)
		assert.Equal(t, 0, api.refreshHits)

		session, loadErr := store.Load()
		require.NoError(t, loadErr)
		assert.False(t, session.HasTokens())
	})

	t.Run("unreachable server", func(t *testing.T) {
		store := NewMemoryTokenStore()
		require.NoError(t, store.Save(&StoredSession{
			Token:        "access-token",
			RefreshToken: "refresh-token",
		}))

		// port 1 refuses connections
		c := New("http://127.0.0.1:1", WithTokenStore(store))

		state, err := c.Restore(context.Background())

		require.Error(t, err)
		assert.Equal(t, StateFailed, state)

		session, loadErr := store.Load()
		require.NoError(t, loadErr)
		assert.False(t, session.HasTokens())
	})
}
