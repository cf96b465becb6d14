package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"reup-suggest-backend/internal/analytics"
	"reup-suggest-backend/internal/logging"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// Middleware guards the per-user suggestion routes. Every engine, usage
// counter and analytics event downstream is keyed by the user id it puts
// in the request context.
type Middleware struct {
	secret []byte
	log    *slog.Logger
}

func New(secret []byte, log *slog.Logger) Middleware {
	if log == nil {
		log = logging.Nop()
	}
	return Middleware{secret: secret, log: log}
}

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			unauthorized(w, "missing token")
			return
		}

		userID, err := ParseToken(m.secret, tokenString)
		if err != nil {
			m.log.Debug("token rejected", "path", r.URL.Path, "error", err)
			unauthorized(w, "invalid token")
			return
		}

		ctx := WithUserID(r.Context(), userID)
		next(w, r.WithContext(ctx))
	}
}

// bearerToken reads "Authorization: Bearer <token>"; the scheme is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="suggestions"`)
	http.Error(w, msg, http.StatusUnauthorized)
}

// WithUserID scopes ctx to a user for both the handlers and analytics.
func WithUserID(ctx context.Context, userID int) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return analytics.WithUserID(ctx, userID)
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return 0, false
	}
	uid, ok := v.(int)
	return uid, ok
}
