package access

import (
	"context"
	"io/fs"
	"sort"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT NOT NULL PRIMARY KEY,
	applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// MigrateUp applies the embedded *.up.sql migrations in lexical order,
// recording applied names so reruns are no-ops.
func MigrateUp(ctx context.Context, db *bun.DB, logger Logger) error {
	if logger == nil {
		logger = defLogger{}
	}

	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create schema_migrations")
	}

	names, err := fs.Glob(migrationsFS, "data/sql/migrations/*.up.sql")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read embedded migrations")
	}
	sort.Strings(names)

	for _, name := range names {
		applied, err := migrationApplied(ctx, db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read migration").
				WithMetadata(map[string]any{"name": name})
		}

		err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.NewRaw("INSERT INTO schema_migrations (name) VALUES (?)", name).Exec(ctx)
			return err
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migration").
				WithMetadata(map[string]any{"name": name})
		}

		logger.Info("applied migration", "name", name)
	}

	return nil
}

func migrationApplied(ctx context.Context, db *bun.DB, name string) (bool, error) {
	var count int
	err := db.NewRaw("SELECT COUNT(*) FROM schema_migrations WHERE name = ?", name).Scan(ctx, &count)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check migration state")
	}
	return count > 0, nil
}
