package idempotency

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySeenOnceThenDuplicate(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	seen, err := m.Seen(ctx, EventKey("event", "abc"))
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = m.Seen(ctx, EventKey("event", "abc"))
	require.NoError(t, err)
	assert.True(t, seen)

	// Different source, same id: distinct key.
	seen, err = m.Seen(ctx, EventKey("other", "abc"))
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryTrimsOldestPastCap(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		seen, err := m.Seen(ctx, fmt.Sprintf("k-%d", i))
		require.NoError(t, err)
		assert.False(t, seen)
	}

	// The trim dropped the oldest keys, so an early key reads as new again.
	seen, err := m.Seen(ctx, "k-0")
	require.NoError(t, err)
	assert.False(t, seen)

	// The newest keys survived the trim.
	seen, err = m.Seen(ctx, "k-10")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryBounded(t *testing.T) {
	m := NewMemory(200)
	ctx := context.Background()

	for i := 0; i < 5000; i++ {
		_, err := m.Seen(ctx, fmt.Sprintf("k-%d", i))
		require.NoError(t, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.LessOrEqual(t, len(m.seen), 200)
	assert.Equal(t, len(m.seen), len(m.order))
}

func TestMemoryConcurrentSingleWinner(t *testing.T) {
	m := NewMemory(100)
	ctx := context.Background()

	const goroutines = 32
	var wg sync.WaitGroup
	fresh := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen, err := m.Seen(ctx, "same-key")
			if err != nil {
				t.Errorf("seen: %v", err)
				return
			}
			if !seen {
				fresh <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(fresh)
	assert.Len(t, fresh, 1)
}
