package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	dbx, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })

	s, err := NewSQLStore(dbx, "sqlite3")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	// idempotent
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// exerciseBackend runs the behaviour every backend must share.
func exerciseBackend(t *testing.T, b Backend) {
	ctx := context.Background()

	require.NoError(t, b.Record(ctx, 1, "t1", t0))
	require.NoError(t, b.Record(ctx, 1, "t1", t0.Add(2*time.Hour)))
	// older event does not move last-used back
	require.NoError(t, b.Record(ctx, 1, "t1", t0.Add(time.Hour)))
	require.NoError(t, b.Record(ctx, 1, "t2", t0))
	require.NoError(t, b.Record(ctx, 2, "t1", t0))

	stats, err := b.Stats(ctx, 1, []string{"t1", "t2", "t3", "t1", ""})
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, 3, stats["t1"].Count)
	assert.True(t, stats["t1"].LastUsed.Equal(t0.Add(2*time.Hour)), "last used %s", stats["t1"].LastUsed)
	assert.Equal(t, 1, stats["t2"].Count)

	other, err := b.Stats(ctx, 2, []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Len(t, other, 1)
	assert.Equal(t, 1, other["t1"].Count)

	empty, err := b.Stats(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore(t *testing.T) {
	exerciseBackend(t, NewMemoryStore())
}

func TestSQLStore_SQLite(t *testing.T) {
	exerciseBackend(t, newSQLiteStore(t))
}

func TestSQLStore_SQLiteManyIDs(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	ids := make([]string, 0, 1200)
	for i := 0; i < 1200; i++ {
		ids = append(ids, fmt.Sprintf("t%d", i))
	}
	require.NoError(t, s.Record(ctx, 1, "t5", t0))
	require.NoError(t, s.Record(ctx, 1, "t1100", t0))

	stats, err := s.Stats(ctx, 1, ids)
	require.NoError(t, err)
	assert.Len(t, stats, 2)
	assert.Contains(t, stats, "t1100")
}

func TestNewSQLStore_UnsupportedDriver(t *testing.T) {
	_, err := NewSQLStore(nil, "mysql")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping redis test. Set REDIS_ADDR to run.")
	}

	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()
	s.prefix = fmt.Sprintf("suggest:test:%d", time.Now().UnixNano())

	exerciseBackend(t, s)
}

func TestParseStat(t *testing.T) {
	st, ok := parseStat([]interface{}{"4", "1772355600000"})
	require.True(t, ok)
	assert.Equal(t, 4, st.Count)
	assert.Equal(t, int64(1772355600000), st.LastUsed.UnixMilli())

	_, ok = parseStat([]interface{}{nil, nil})
	assert.False(t, ok)
	_, ok = parseStat([]interface{}{"zero", nil})
	assert.False(t, ok)
	_, ok = parseStat([]interface{}{"1"})
	assert.False(t, ok)
}

func TestScoped(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	a, b := For(m, 10), For(m, 11)
	require.NoError(t, a.RecordUsage(ctx, "t1", t0))

	got, err := a.UsageStats(ctx, []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, got["t1"].Count)

	got, err = b.UsageStats(ctx, []string{"t1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
