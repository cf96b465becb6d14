package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reup-suggest-backend/internal/logging"
)

type CtxKey string

const (
	ctxUserIDKey CtxKey = "analytics_user_id"
)

const (
	EventSuggestionsGenerated = "suggestions_generated"
	EventSuggestionAccepted   = "suggestion_accepted"
	EventSuggestionShown      = "suggestion_shown"
	EventSuggestionDismissed  = "suggestion_dismissed"
)

// Envelope is what we store with every event.
type Envelope struct {
	UserID       int
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// FromRequest extracts event envelope fields from request headers.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(ctxUserIDKey)
	if v == nil {
		return 0, false
	}
	uid, ok := v.(int)
	return uid, ok
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// Duplicate keys are ignored on insert.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Recorder writes events to the analytics_events table. A Recorder without
// a DB drops events, which keeps local runs free of the analytics schema.
type Recorder struct {
	DB     *sql.DB
	Driver string
	Logger *slog.Logger
}

func NewRecorder(db *sql.DB, driver string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Recorder{DB: db, Driver: driver, Logger: logger}
}

// Log inserts one event. Callers pass sanitized props, never raw task text.
// Failures are logged and returned; handlers ignore the error.
func (rec *Recorder) Log(ctx context.Context, env Envelope, eventName string, props any, sourceEventKey string) error {
	if rec == nil || rec.DB == nil || eventName == "" {
		return nil
	}

	userID := env.UserID
	if userID == 0 {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return nil
		}
		userID = uid
	}

	b, err := json.Marshal(props)
	if err != nil {
		rec.logger().Warn("analytics props not serializable", "event", eventName, "error", err)
		return fmt.Errorf("marshal props: %w", err)
	}

	cast := ""
	if rec.Driver == "postgres" {
		cast = "::jsonb"
	}

	_, err = rec.DB.ExecContext(ctx, `
		INSERT INTO analytics_events (
			event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale,
			source_event_key,
			properties
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9`+cast+`)
		ON CONFLICT (source_event_key) DO NOTHING
	`, eventName, time.Now().UTC(),
		userID, nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale),
		nullIfEmpty(sourceEventKey),
		string(b),
	)
	if err != nil {
		rec.logger().Warn("analytics insert failed", "event", eventName, "error", err)
		return fmt.Errorf("insert %s: %w", eventName, err)
	}
	return nil
}

func (rec *Recorder) logger() *slog.Logger {
	if rec.Logger == nil {
		return logging.Nop()
	}
	return rec.Logger
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ConfidenceTier buckets a confidence score for reporting.
func ConfidenceTier(confidence float64) string {
	switch {
	case confidence >= 0.75:
		return "high"
	case confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}
