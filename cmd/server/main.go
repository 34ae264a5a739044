package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/carecal/go-access"
	"github.com/carecal/go-access/middleware/accessware"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// userTrackerAdapter narrows the Users repository to the UserTracker surface
// the identity provider needs.
type userTrackerAdapter struct {
	users access.Users
}

func (a userTrackerAdapter) GetByEmail(ctx context.Context, email string) (*access.User, error) {
	return a.users.GetByEmail(ctx, email)
}

func (a userTrackerAdapter) GetByID(ctx context.Context, id string) (*access.User, error) {
	return a.users.GetByID(ctx, id)
}

func (a userTrackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *access.User) error {
	return a.users.TrackSuccessfulLogin(ctx, user)
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic(err)
	}

	zlog := NewLogger(cfg.Environment)
	logger := NewComponentLogger(zlog, "app")

	ctx := context.Background()

	db, err := openDB(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := access.MigrateUp(ctx, db, NewComponentLogger(zlog, "migrate")); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	repo := access.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		logger.Error("repository validation failed", "error", err)
		os.Exit(1)
	}

	provider := access.NewUserProvider(userTrackerAdapter{users: repo.Users()}).
		WithLogger(NewComponentLogger(zlog, "auth:provider"))

	auditLog := NewComponentLogger(zlog, "audit")
	activity := access.ActivitySinkFunc(func(ctx context.Context, event access.ActivityEvent) error {
		auditLog.Info("activity",
			"event", string(event.EventType),
			"user_id", event.UserID,
			"email", event.Email,
			"request_id", event.RequestID,
		)
		return nil
	})

	auther := access.NewAuthenticator(provider, repo.Users(), &cfg.Auth).
		WithLogger(NewComponentLogger(zlog, "auth")).
		WithActivitySink(activity)

	authenticated := accessware.New(accessware.Config{
		TokenValidator: auther.TokenService(),
		UserFinder: accessware.UserFinderFunc(func(ctx context.Context, id string) (*access.User, error) {
			return repo.Users().GetByID(ctx, id)
		}),
		ContextKey:  cfg.Auth.ContextKey,
		TokenLookup: cfg.Auth.TokenLookup,
		AuthScheme:  cfg.Auth.AuthScheme,
	})

	adminOnly := accessware.RequireAdmin(accessware.Config{
		ContextKey: cfg.Auth.ContextKey,
	})

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:       "carecal-access",
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	controller := access.NewHTTPController(repo, auther, access.HTTPConfig{
		ContextKey:    cfg.Auth.ContextKey,
		Authenticated: authenticated,
		AdminOnly:     adminOnly,
		Activity:      activity,
	}).WithLogger(NewComponentLogger(zlog, "http"))

	controller.RegisterRoutes(srv.Router())

	logger.Info("server listening", "addr", cfg.HTTP.Addr())
	srv.Serve(cfg.HTTP.Addr())

	WaitExitSignal()
	logger.Info("shutting down")
}

func openDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, err
	}

	return db, nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
