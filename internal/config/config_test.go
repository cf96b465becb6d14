package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"SQLITE_PATH", "USAGE_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"JWT_SECRET", "CORS_ORIGINS", "LOG_LEVEL",
		"SUGGEST_LIMIT", "SUGGEST_TIMEOUT_MS", "SUGGEST_TEMPLATES_PATH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, UsagePostgres, cfg.UsageBackend)
	assert.Equal(t, 5, cfg.SuggestLimit)
	assert.Equal(t, 3*time.Second, cfg.SuggestTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_SQLiteDefaultsUsageToSQLite(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, UsageSQLite, cfg.UsageBackend)
	assert.Equal(t, "/tmp/x.db", cfg.ConnString())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "reup")
	t.Setenv("USAGE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SUGGEST_LIMIT", "8")
	t.Setenv("SUGGEST_TIMEOUT_MS", "250")
	t.Setenv("CORS_ORIGINS", "https://app.reup.io, http://localhost:3000,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, UsageRedis, cfg.UsageBackend)
	assert.Equal(t, 8, cfg.SuggestLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.SuggestTimeout)
	assert.Equal(t, []string{"https://app.reup.io", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "host=db port=6543 user=app password=pw dbname=reup sslmode=disable", cfg.ConnString())
}

func TestLoad_InvalidPortFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_PORT", "not-a-port")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.DBPort)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET"},
		{"bad driver", map[string]string{"JWT_SECRET": "x", "DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"bad backend", map[string]string{"JWT_SECRET": "x", "USAGE_BACKEND": "etcd"}, "USAGE_BACKEND"},
		{"redis without addr", map[string]string{"JWT_SECRET": "x", "USAGE_BACKEND": "redis"}, "REDIS_ADDR"},
		{"zero limit", map[string]string{"JWT_SECRET": "x", "SUGGEST_LIMIT": "0"}, "SUGGEST_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
