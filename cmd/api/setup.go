package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reup-suggest-backend/internal/analytics"
	"reup-suggest-backend/internal/config"
	"reup-suggest-backend/internal/db"
	"reup-suggest-backend/internal/tasks"
	"reup-suggest-backend/internal/usage"
)

// migrateMain brings the main database up to the schema the handlers query.
func migrateMain(ctx context.Context, database *sql.DB, driver string, rec *analytics.Recorder) error {
	if err := tasks.Migrate(ctx, database, driver); err != nil {
		return err
	}
	return rec.Migrate(ctx)
}

// openUsage picks the usage counter backend. The returned close func is
// always safe to call.
func openUsage(ctx context.Context, cfg *config.Config, database *sql.DB) (usage.Backend, func(), error) {
	noop := func() {}

	switch cfg.UsageBackend {
	case config.UsageMemory:
		return usage.NewMemoryStore(), noop, nil

	case config.UsageRedis:
		store, err := usage.NewRedisStore(ctx, usage.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      90 * 24 * time.Hour,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil

	case config.UsagePostgres:
		if cfg.DBDriver != db.DriverPostgres {
			return nil, noop, fmt.Errorf("usage backend postgres needs DB_DRIVER=postgres, got %q", cfg.DBDriver)
		}
		store, err := usage.NewSQLStore(database, db.DriverPostgres)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, store.Migrate(ctx)

	case config.UsageSQLite:
		conn, closeFn := database, noop
		if cfg.DBDriver != db.DriverSQLite {
			// counters in a local file next to a postgres main db
			local, err := db.Connect(db.DriverSQLite, cfg.SQLitePath)
			if err != nil {
				return nil, noop, err
			}
			conn, closeFn = local, func() { local.Close() }
		}
		store, err := usage.NewSQLStore(conn, db.DriverSQLite)
		if err != nil {
			closeFn()
			return nil, noop, err
		}
		if err := store.Migrate(ctx); err != nil {
			closeFn()
			return nil, noop, err
		}
		return store, closeFn, nil
	}

	return nil, noop, fmt.Errorf("unknown usage backend %q", cfg.UsageBackend)
}
