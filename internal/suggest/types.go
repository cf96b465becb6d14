// Package suggest ranks "smart suggestions" for a user's task list and
// keeps the per-user engine state the API serves.
package suggest

import (
	"context"
	"errors"
	"time"

	"reup-suggest-backend/internal/tasks"
)

type Kind string

const (
	KindRecent     Kind = "recent"
	KindTemplate   Kind = "template"
	KindCompletion Kind = "completion"
	KindContext    Kind = "context"
	KindPattern    Kind = "pattern"
)

// Suggestion is an ephemeral, ranked recommendation. It is never persisted.
type Suggestion struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Title      string         `json:"title"`
	TaskID     string         `json:"task_id,omitempty"`
	Category   string         `json:"category,omitempty"`
	Priority   tasks.Priority `json:"priority,omitempty"`
	Location   string         `json:"location,omitempty"`
	Confidence float64        `json:"confidence"`
	Metadata   *Metadata      `json:"metadata,omitempty"`

	// position of the originating task (templates follow all tasks)
	origin int
}

type Metadata struct {
	UsageCount int        `json:"usage_count,omitempty"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
	Pattern    string     `json:"pattern,omitempty"`
}

func (s Suggestion) lastUsed() *time.Time {
	if s.Metadata == nil {
		return nil
	}
	return s.Metadata.LastUsed
}

// UsageStat is what the usage store knows about one task.
type UsageStat struct {
	Count    int
	LastUsed time.Time
}

// UsageRecorder receives learning events.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, taskID string, at time.Time) error
}

// UsageSource feeds usage counters back into scoring.
type UsageSource interface {
	UsageStats(ctx context.Context, taskIDs []string) (map[string]UsageStat, error)
}

type UsageStore interface {
	UsageRecorder
	UsageSource
}

var (
	ErrInvalidInput = errors.New("invalid suggestion input")
	ErrSuperseded   = errors.New("generation superseded by a newer request")
	ErrUnknownTask  = errors.New("unknown task")
)
