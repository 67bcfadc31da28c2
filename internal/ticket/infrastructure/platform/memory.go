// Package platform holds the default chat-platform adapters. The in-memory
// conversation provider stands in for the real SDK in dev mode and tests;
// a production deployment swaps in an adapter for its platform.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MemoryConversations hands out synthetic channel ids and tracks which ones
// still exist.
type MemoryConversations struct {
	seq  atomic.Int64
	mu   sync.Mutex
	open map[string]struct{}
}

func NewMemoryConversations() *MemoryConversations {
	return &MemoryConversations{open: make(map[string]struct{})}
}

func (m *MemoryConversations) Create(_ context.Context, buyerID string) (string, error) {
	id := fmt.Sprintf("ticket-%s-%d", buyerID, m.seq.Add(1))
	m.mu.Lock()
	m.open[id] = struct{}{}
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryConversations) Exists(_ context.Context, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[channelID]
	return ok, nil
}

func (m *MemoryConversations) Delete(_ context.Context, channelID string) error {
	m.mu.Lock()
	delete(m.open, channelID)
	m.mu.Unlock()
	return nil
}

// LogNotifier posts ticket messages to the process log.
type LogNotifier struct {
	Log *slog.Logger
}

func (n *LogNotifier) Post(_ context.Context, channelID, text string) error {
	n.Log.Info("channel message", "channel_id", channelID, "text", text)
	return nil
}
