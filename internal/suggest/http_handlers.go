package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reup-suggest-backend/internal/analytics"
	"reup-suggest-backend/internal/auth"
	"reup-suggest-backend/internal/logging"
	"reup-suggest-backend/internal/tasks"
)

// TaskSource loads a user's tasks when the client does not send them.
type TaskSource interface {
	Snapshot(ctx context.Context, uid int) (tasks.Snapshot, error)
}

type stateResponse struct {
	Status      Status       `json:"status"`
	IsLoading   bool         `json:"is_loading"`
	Unavailable bool         `json:"unavailable"`
	Seq         uint64       `json:"seq"`
	RequestID   string       `json:"request_id,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func toResponse(st State) stateResponse {
	return stateResponse{
		Status:      st.Status,
		IsLoading:   st.IsLoading(),
		Unavailable: st.Status == StatusFailed,
		Seq:         st.Seq,
		RequestID:   st.RequestID,
		Suggestions: st.Suggestions,
		UpdatedAt:   st.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func GetSuggestionsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(hub.Get(uid).State()))
	}
}

func GenerateSuggestionsHandler(hub *Hub, src TaskSource, rec *analytics.Recorder, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = logging.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			Tasks      []tasks.Task     `json:"tasks"`
			Categories []tasks.Category `json:"categories"`
			Location   string           `json:"location"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		snap := tasks.Snapshot{Tasks: body.Tasks, Categories: body.Categories}
		if body.Tasks == nil {
			if src == nil {
				http.Error(w, "tasks required", http.StatusBadRequest)
				return
			}
			loaded, err := src.Snapshot(r.Context(), uid)
			if err != nil {
				log.Warn("load task snapshot failed", "user_id", uid, "error", err)
				http.Error(w, "tasks unavailable", http.StatusServiceUnavailable)
				return
			}
			snap = loaded
		}

		req := Request{Snapshot: snap, Location: strings.TrimSpace(body.Location)}
		engine := hub.Get(uid)

		if r.URL.Query().Get("async") == "1" {
			seq := engine.Start(r.Context(), req)
			writeJSON(w, http.StatusAccepted, map[string]any{"seq": seq})
			return
		}

		st, err := engine.Generate(r.Context(), req)
		switch {
		case errors.Is(err, ErrSuperseded):
			writeJSON(w, http.StatusConflict, toResponse(st))
			return
		case err != nil:
			// client went away
			log.Debug("generate wait aborted", "user_id", uid, "error", err)
			http.Error(w, "request canceled", http.StatusServiceUnavailable)
			return
		}

		// analytics: suggestions_generated
		if st.Status == StatusReady {
			env := analytics.FromRequest(r)
			env.UserID = uid

			kinds := map[Kind]int{}
			for _, s := range st.Suggestions {
				kinds[s.Kind]++
			}
			props := map[string]any{
				"seq":        st.Seq,
				"request_id": st.RequestID,
				"count":      len(st.Suggestions),
				"kinds":      kinds,
				"task_count": len(snap.Tasks),
			}
			if len(st.Suggestions) > 0 {
				props["top_tier"] = analytics.ConfidenceTier(st.Suggestions[0].Confidence)
			}
			_ = rec.Log(r.Context(), env, analytics.EventSuggestionsGenerated, props, analytics.SourceEventKeyFromRequest(r))
		}

		writeJSON(w, http.StatusOK, toResponse(st))
	}
}

func LearnHandler(hub *Hub, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			TaskID       string `json:"task_id"`
			SuggestionID string `json:"suggestion_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		taskID := strings.TrimSpace(body.TaskID)
		if taskID == "" {
			http.Error(w, "task_id required", http.StatusBadRequest)
			return
		}

		recorded := hub.Get(uid).LearnFromTask(r.Context(), taskID)

		// analytics: suggestion_accepted
		{
			env := analytics.FromRequest(r)
			env.UserID = uid
			props := map[string]any{
				"task_id":       taskID,
				"suggestion_id": body.SuggestionID,
				"recorded":      recorded,
			}
			_ = rec.Log(r.Context(), env, analytics.EventSuggestionAccepted, props, analytics.SourceEventKeyFromRequest(r))
		}

		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}
