package analytics

import (
	"context"
	_ "embed"
	"fmt"
)

var (
	//go:embed schema_postgres.sql
	postgresSchema string
	//go:embed schema_sqlite.sql
	sqliteSchema string
)

// Migrate creates analytics_events. The unique source_event_key index backs
// the ON CONFLICT clause in Log.
func (rec *Recorder) Migrate(ctx context.Context) error {
	if rec == nil || rec.DB == nil {
		return nil
	}

	var ddl string
	switch rec.Driver {
	case "postgres":
		ddl = postgresSchema
	case "sqlite3":
		ddl = sqliteSchema
	default:
		return fmt.Errorf("analytics: unsupported driver %q", rec.Driver)
	}

	if _, err := rec.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate analytics_events: %w", err)
	}
	return nil
}
