package tasks

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusDone     Status = "done"
	StatusCanceled Status = "canceled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is empty or one of the known levels.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CategoryID  string     `json:"category_id,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Location    string     `json:"location,omitempty"`
	Status      Status     `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsActive treats an empty status as active, matching the tasks table default.
func (t Task) IsActive() bool {
	return t.Status == "" || t.Status == StatusActive
}

type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Snapshot is the read-only input a suggestion run works on.
type Snapshot struct {
	Tasks      []Task     `json:"tasks"`
	Categories []Category `json:"categories"`
}

// TaskIDs returns the ids of all tasks in the snapshot, in order.
func (s Snapshot) TaskIDs() []string {
	ids := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
