package idempotency

import (
	"context"
	"sync"
)

// Memory is a bounded in-process seen-set for single-instance deployments
// and tests. When the set grows past cap it is trimmed to the most recent
// half, oldest first, so memory stays flat under sustained traffic.
type Memory struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	cap   int
}

// NewMemory returns a Memory store holding at most capacity keys.
// A capacity of 0 falls back to 200.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 200
	}
	return &Memory{
		seen: make(map[string]struct{}, capacity),
		cap:  capacity,
	}
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[key]; ok {
		return true, nil
	}
	m.seen[key] = struct{}{}
	m.order = append(m.order, key)

	if len(m.order) > m.cap {
		drop := m.order[:len(m.order)-m.cap/2]
		m.order = append([]string(nil), m.order[len(m.order)-m.cap/2:]...)
		for _, k := range drop {
			delete(m.seen, k)
		}
	}
	return false, nil
}
