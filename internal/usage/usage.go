// Package usage stores the per-user task usage counters that feed
// suggestion scoring. Each backend hands out user-scoped views that
// satisfy suggest.UsageStore.
package usage

import (
	"context"
	"strings"
	"time"

	"reup-suggest-backend/internal/suggest"
)

// Backend is a multi-user usage store.
type Backend interface {
	Record(ctx context.Context, owner int, taskID string, at time.Time) error
	Stats(ctx context.Context, owner int, taskIDs []string) (map[string]suggest.UsageStat, error)
}

// Scoped binds a backend to one user.
type Scoped struct {
	backend Backend
	owner   int
}

var _ suggest.UsageStore = Scoped{}

func For(b Backend, owner int) Scoped {
	return Scoped{backend: b, owner: owner}
}

func (s Scoped) RecordUsage(ctx context.Context, taskID string, at time.Time) error {
	return s.backend.Record(ctx, s.owner, taskID, at)
}

func (s Scoped) UsageStats(ctx context.Context, taskIDs []string) (map[string]suggest.UsageStat, error) {
	return s.backend.Stats(ctx, s.owner, taskIDs)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
