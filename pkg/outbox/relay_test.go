package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memOutbox struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func (m *memOutbox) LockBatch(_ context.Context, relayID string, batchSize int, _ time.Duration) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.pending)
	if n > batchSize {
		n = batchSize
	}
	out := make([]Event, n)
	copy(out, m.pending[:n])
	for i := range out {
		out[i].Status = StatusInProgress
		out[i].RelayID = relayID
	}
	m.pending = m.pending[n:]
	return out, nil
}

func (m *memOutbox) MarkSent(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, ids...)
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed == nil {
		m.failed = make(map[int64]string)
	}
	m.failed[id] = errMsg
	return nil
}

func (m *memOutbox) ExtendLease(context.Context, string, []int64, time.Duration) error {
	return nil
}

type memProducer struct {
	mu   sync.Mutex
	msgs []kafka.Message
	fail func(kafka.Message) error
}

func (p *memProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if p.fail != nil {
			if err := p.fail(m); err != nil {
				return err
			}
		}
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchCarriesEventMetadata(t *testing.T) {
	producer := &memProducer{}
	d := NewDispatcher(discard(), producer, "storefront.events")

	err := d.Dispatch(context.Background(), Event{
		ID:          1,
		AggregateID: "ch-1",
		Type:        "TransactionRecorded",
		Payload:     []byte(`{"invoice":"INV-20260829-0001"}`),
		Headers:     map[string]string{"source": "storefront"},
		Traceparent: "00-abc-def-01",
	})
	require.NoError(t, err)

	require.Len(t, producer.msgs, 1)
	msg := producer.msgs[0]
	assert.Equal(t, "storefront.events", msg.Topic)
	assert.Equal(t, []byte("ch-1"), msg.Key)

	got := make(map[string]string)
	for _, h := range msg.Headers {
		got[h.Key] = string(h.Value)
	}
	assert.Equal(t, "TransactionRecorded", got["event_type"])
	assert.Equal(t, "00-abc-def-01", got["traceparent"])
	assert.Equal(t, "storefront", got["source"])
}

func TestRelayMarksSentAndFailed(t *testing.T) {
	store := &memOutbox{pending: []Event{
		{ID: 1, AggregateID: "ch-1", Type: "TicketOpened"},
		{ID: 2, AggregateID: "ch-2", Type: "TicketOpened"},
		{ID: 3, AggregateID: "ch-3", Type: "TicketOpened"},
	}}
	producer := &memProducer{fail: func(m kafka.Message) error {
		if string(m.Key) == "ch-2" {
			return errors.New("broker unavailable")
		}
		return nil
	}}

	r := NewRelay(discard(), store, NewDispatcher(discard(), producer, "storefront.events"), "relay-1")
	r.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.sent) == 2 && len(store.failed) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.ElementsMatch(t, []int64{1, 3}, store.sent)
	assert.Contains(t, store.failed[2], "broker unavailable")
}
