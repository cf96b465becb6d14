package analytics

import (
	"encoding/json"
	"net/http"
	"strings"
)

// SuggestionShownHandler records that the client rendered a suggestion list.
func SuggestionShownHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			Seq           uint64   `json:"seq"`
			SuggestionIDs []string `json:"suggestion_ids"`
			Source        string   `json:"source"` // initial/refresh/return/unknown
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		env := FromRequest(r)
		env.UserID = uid

		props := map[string]any{
			"seq":            body.Seq,
			"suggestion_ids": body.SuggestionIDs,
			"count":          len(body.SuggestionIDs),
			"source":         normalizeSource(body.Source),
		}
		_ = rec.Log(r.Context(), env, EventSuggestionShown, props, SourceEventKeyFromRequest(r))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

// SuggestionDismissedHandler records that the user swiped a suggestion away.
func SuggestionDismissedHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			SuggestionID string `json:"suggestion_id"`
			Kind         string `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.SuggestionID) == "" {
			http.Error(w, "suggestion_id required", http.StatusBadRequest)
			return
		}

		env := FromRequest(r)
		env.UserID = uid

		props := map[string]any{
			"suggestion_id": body.SuggestionID,
			"kind":          body.Kind,
		}
		_ = rec.Log(r.Context(), env, EventSuggestionDismissed, props, SourceEventKeyFromRequest(r))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func normalizeSource(s string) string {
	switch s {
	case "initial", "refresh", "return":
		return s
	}
	return "unknown"
}
