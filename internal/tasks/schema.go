package tasks

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

var (
	//go:embed schema_postgres.sql
	postgresSchema string
	//go:embed schema_sqlite.sql
	sqliteSchema string
)

// Migrate creates the task tables if missing. On postgres an existing tasks
// table is extended in place with the columns ListTasks reads.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var ddl string
	switch driver {
	case "postgres":
		ddl = postgresSchema
	case "sqlite3":
		ddl = sqliteSchema
	default:
		return fmt.Errorf("tasks: unsupported driver %q", driver)
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate tasks: %w", err)
	}
	return nil
}
