package access_test

import (
	"context"
	"database/sql"
	"testing"

	access "github.com/carecal/go-access"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'member',
    password_hash TEXT NOT NULL,
    has_posting_access BOOLEAN NOT NULL DEFAULT FALSE,
    last_login TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
	sqliteCreateAccessRequests = `CREATE TABLE access_requests (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`
	sqlitePendingRequestIndex = `CREATE UNIQUE INDEX ux_access_requests_user_pending
    ON access_requests (user_id) WHERE status = 'pending';`
)

func setupRepositoryManager(t *testing.T) (access.RepositoryManager, func()) {
	t.Helper()

	repo, _, cleanup := setupRepositoryManagerWithDB(t)
	return repo, cleanup
}

// setupRepositoryManagerWithDB additionally hands back the raw handle so tests
// can break the schema underneath the repositories.
func setupRepositoryManagerWithDB(t *testing.T) (access.RepositoryManager, *bun.DB, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateAccessRequests)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqlitePendingRequestIndex)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return access.NewRepositoryManager(bunDB), bunDB, cleanup
}

func seedUser(t *testing.T, repo access.RepositoryManager, email, password string, role access.UserRole) *access.User {
	t.Helper()

	hash, err := access.HashPassword(password)
	require.NoError(t, err)

	user, err := repo.Users().Register(context.Background(), &access.User{
		Email:        email,
		Name:         "Test User",
		Role:         role,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)

	return user
}

// testAuthConfig implements access.Config for wiring authenticators in tests
type testAuthConfig struct{}

func (testAuthConfig) GetSigningKey() string        { return string(testSigningKey) }
func (testAuthConfig) GetRefreshSigningKey() string { return string(testRefreshSigningKey) }
func (testAuthConfig) GetContextKey() string        { return "user" }
func (testAuthConfig) GetTokenExpiration() int      { return 24 }
func (testAuthConfig) GetRefreshExpiration() int    { return 168 }
func (testAuthConfig) GetTokenLookup() string       { return "header:Authorization" }
func (testAuthConfig) GetAuthScheme() string        { return "Bearer" }
func (testAuthConfig) GetIssuer() string            { return "test-issuer" }
func (testAuthConfig) GetAudience() []string        { return []string{"test-audience"} }

// trackerAdapter narrows the Users repository to the UserTracker surface
type trackerAdapter struct {
	users access.Users
}

func (a trackerAdapter) GetByEmail(ctx context.Context, email string) (*access.User, error) {
	return a.users.GetByEmail(ctx, email)
}

func (a trackerAdapter) GetByID(ctx context.Context, id string) (*access.User, error) {
	return a.users.GetByID(ctx, id)
}

func (a trackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *access.User) error {
	return a.users.TrackSuccessfulLogin(ctx, user)
}
