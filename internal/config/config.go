package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	UsagePostgres = "postgres"
	UsageSQLite   = "sqlite"
	UsageRedis    = "redis"
	UsageMemory   = "memory"
)

type Config struct {
	Port int

	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	UsageBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret   string
	CORSOrigins []string
	LogLevel    string

	SuggestLimit   int
	SuggestTimeout time.Duration
	TemplatesPath  string
}

// Load reads the environment, after applying a .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port: intEnv("PORT", 8080),

		DBDriver:   stringEnv("DB_DRIVER", "postgres"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     intEnv("DB_PORT", 5432),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		SQLitePath: stringEnv("SQLITE_PATH", "suggest.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       intEnv("REDIS_DB", 0),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: listEnv("CORS_ORIGINS", []string{"*"}),
		LogLevel:    stringEnv("LOG_LEVEL", "info"),

		SuggestLimit:   intEnv("SUGGEST_LIMIT", 5),
		SuggestTimeout: time.Duration(intEnv("SUGGEST_TIMEOUT_MS", 3000)) * time.Millisecond,
		TemplatesPath:  os.Getenv("SUGGEST_TEMPLATES_PATH"),
	}

	// usage counters live next to the tasks unless told otherwise
	backend := strings.ToLower(os.Getenv("USAGE_BACKEND"))
	if backend == "" {
		backend = UsagePostgres
		if cfg.DBDriver == "sqlite3" {
			backend = UsageSQLite
		}
	}
	cfg.UsageBackend = backend

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.DBDriver)
	}

	switch c.UsageBackend {
	case UsagePostgres, UsageSQLite, UsageRedis, UsageMemory:
	default:
		return fmt.Errorf("invalid USAGE_BACKEND %q", c.UsageBackend)
	}
	if c.UsageBackend == UsageRedis && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required for the redis usage backend")
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.SuggestLimit <= 0 {
		return fmt.Errorf("SUGGEST_LIMIT must be positive, got %d", c.SuggestLimit)
	}
	if c.SuggestTimeout <= 0 {
		return fmt.Errorf("SUGGEST_TIMEOUT_MS must be positive, got %s", c.SuggestTimeout)
	}
	return nil
}

// ConnString returns the DSN for the configured driver.
func (c *Config) ConnString() string {
	if c.DBDriver == "sqlite3" {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func listEnv(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
