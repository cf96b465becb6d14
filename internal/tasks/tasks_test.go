package tasks

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reup-suggest-backend/internal/db"
)

func newTestRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	dbx, err := db.Connect(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })

	require.NoError(t, Migrate(context.Background(), dbx, db.DriverSQLite))
	return NewRepository(dbx), dbx
}

func TestPriorityValid(t *testing.T) {
	for _, p := range []Priority{"", PriorityLow, PriorityMedium, PriorityHigh} {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Priority("urgent").Valid())
	assert.False(t, Priority("HIGH").Valid())
}

func TestTaskIsActive(t *testing.T) {
	assert.True(t, Task{}.IsActive())
	assert.True(t, Task{Status: StatusActive}.IsActive())
	assert.False(t, Task{Status: StatusDone}.IsActive())
	assert.False(t, Task{Status: StatusCanceled}.IsActive())
}

func TestSnapshotTaskIDs(t *testing.T) {
	s := Snapshot{Tasks: []Task{{ID: "b"}, {ID: "a"}}}
	assert.Equal(t, []string{"b", "a"}, s.TaskIDs())
	assert.Empty(t, Snapshot{}.TaskIDs())
}

func TestRepository_Snapshot(t *testing.T) {
	repo, dbx := newTestRepo(t)

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	due := created.Add(48 * time.Hour)
	done := created.Add(2 * time.Hour)

	_, err := dbx.Exec(`INSERT INTO task_categories (id, user_id, label) VALUES (1, 7, 'Errands'), (2, 8, 'Other')`)
	require.NoError(t, err)

	_, err = dbx.Exec(`
		INSERT INTO tasks (id, user_id, text, title, description, category_id, priority, location, status, created_at, due_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		1, 7, "legacy", " Buy milk ", "2%", 1, "HIGH", "Store", "active", created, due, nil)
	require.NoError(t, err)
	_, err = dbx.Exec(`
		INSERT INTO tasks (id, user_id, text, title, priority, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		2, 7, "Water plants", "", "someday", "done", created, done)
	require.NoError(t, err)
	_, err = dbx.Exec(`
		INSERT INTO tasks (id, user_id, text, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		3, 8, "not mine", "active", created)
	require.NoError(t, err)

	snap, err := repo.Snapshot(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, snap.Tasks, 2)
	first := snap.Tasks[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "Buy milk", first.Title)
	assert.Equal(t, "2%", first.Description)
	assert.Equal(t, "1", first.CategoryID)
	assert.Equal(t, PriorityHigh, first.Priority)
	assert.Equal(t, "Store", first.Location)
	assert.Equal(t, StatusActive, first.Status)
	assert.True(t, first.CreatedAt.Equal(created))
	require.NotNil(t, first.DueAt)
	assert.True(t, first.DueAt.Equal(due))
	assert.Nil(t, first.CompletedAt)
	assert.Nil(t, first.UpdatedAt)

	second := snap.Tasks[1]
	assert.Equal(t, "Water plants", second.Title, "falls back to text when title is blank")
	assert.Empty(t, second.CategoryID)
	assert.Empty(t, second.Priority, "unknown priorities are dropped")
	assert.Equal(t, StatusDone, second.Status)
	require.NotNil(t, second.CompletedAt)
	assert.True(t, second.CompletedAt.Equal(done))

	assert.Equal(t, []Category{{ID: "1", Label: "Errands"}}, snap.Categories)
}

func TestMigrate(t *testing.T) {
	repo, dbx := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, dbx, db.DriverSQLite), "second run is a no-op")
	assert.Error(t, Migrate(ctx, dbx, "mysql"))

	// rows written the way the task app inserts them, with none of the
	// suggestion columns set
	_, err := dbx.Exec(`INSERT INTO tasks (text, title, description, user_id, goal_id) VALUES ($1, $2, $3, $4, $5)`,
		"Call mom", "Call mom", "", 3, 11)
	require.NoError(t, err)

	snap, err := repo.Snapshot(ctx, 3)
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 1)

	got := snap.Tasks[0]
	assert.Equal(t, "Call mom", got.Title)
	assert.Equal(t, StatusActive, got.Status)
	assert.Empty(t, got.CategoryID)
	assert.Empty(t, got.Priority)
	assert.Nil(t, got.DueAt)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Empty(t, snap.Categories)
}

func TestRepository_EmptyUser(t *testing.T) {
	repo, _ := newTestRepo(t)

	snap, err := repo.Snapshot(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, snap.Tasks)
	assert.Empty(t, snap.Categories)
}

func TestRepository_QueryError(t *testing.T) {
	repo, dbx := newTestRepo(t)
	_, err := dbx.Exec(`DROP TABLE tasks`)
	require.NoError(t, err)

	_, err = repo.Snapshot(context.Background(), 7)
	assert.ErrorContains(t, err, "query tasks")
}
