package usage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"reup-suggest-backend/internal/suggest"
)

//go:embed schema.sql
var schema string

// sqlite caps bound variables per statement
const sqliteChunk = 500

// SQLStore keeps counters in the task_usage table of postgres or sqlite.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("usage store: unsupported driver %q", driver)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// Migrate creates the usage table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate task_usage: %w", err)
	}
	return nil
}

func (s *SQLStore) Record(ctx context.Context, owner int, taskID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_usage (owner_id, task_id, use_count, last_used_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (owner_id, task_id) DO UPDATE SET
			use_count = task_usage.use_count + 1,
			last_used_at = CASE
				WHEN excluded.last_used_at > task_usage.last_used_at THEN excluded.last_used_at
				ELSE task_usage.last_used_at
			END
	`, owner, taskID, at.UTC())
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (s *SQLStore) Stats(ctx context.Context, owner int, taskIDs []string) (map[string]suggest.UsageStat, error) {
	ids := uniqueIDs(taskIDs)
	out := make(map[string]suggest.UsageStat, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	if s.driver == "postgres" {
		rows, err := s.db.QueryContext(ctx, `
			SELECT task_id, use_count, last_used_at
			FROM task_usage
			WHERE owner_id = $1 AND task_id = ANY($2)
		`, owner, pq.Array(ids))
		if err != nil {
			return nil, fmt.Errorf("query usage: %w", err)
		}
		if err := scanStats(rows, out); err != nil {
			return nil, err
		}
		return out, nil
	}

	for start := 0; start < len(ids); start += sqliteChunk {
		end := min(start+sqliteChunk, len(ids))
		chunk := ids[start:end]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, owner)
		for _, id := range chunk {
			args = append(args, id)
		}
		marks := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx, `
			SELECT task_id, use_count, last_used_at
			FROM task_usage
			WHERE owner_id = ? AND task_id IN (`+marks+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("query usage: %w", err)
		}
		if err := scanStats(rows, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanStats(rows *sql.Rows, out map[string]suggest.UsageStat) error {
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			st suggest.UsageStat
		)
		if err := rows.Scan(&id, &st.Count, &st.LastUsed); err != nil {
			return fmt.Errorf("scan usage: %w", err)
		}
		out[id] = st
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("usage rows: %w", err)
	}
	return nil
}
