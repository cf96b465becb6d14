package usage

import (
	"context"
	"sync"
	"time"

	"reup-suggest-backend/internal/suggest"
)

// MemoryStore keeps counters in process. Counters are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	stats map[int]map[string]suggest.UsageStat
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stats: make(map[int]map[string]suggest.UsageStat)}
}

func (m *MemoryStore) Record(_ context.Context, owner int, taskID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byTask, ok := m.stats[owner]
	if !ok {
		byTask = make(map[string]suggest.UsageStat)
		m.stats[owner] = byTask
	}
	st := byTask[taskID]
	st.Count++
	if at.After(st.LastUsed) {
		st.LastUsed = at
	}
	byTask[taskID] = st
	return nil
}

func (m *MemoryStore) Stats(_ context.Context, owner int, taskIDs []string) (map[string]suggest.UsageStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]suggest.UsageStat)
	byTask := m.stats[owner]
	for _, id := range uniqueIDs(taskIDs) {
		if st, ok := byTask[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}
