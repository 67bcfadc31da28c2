package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celstore/storefront/internal/invoice/domain"
	ticketdomain "github.com/celstore/storefront/internal/ticket/domain"
)

// memStore replicates the Append contract in memory: a per-day counter and
// the transaction log advance together.
type memStore struct {
	mu   sync.Mutex
	seqs map[string]int
	txs  []domain.Transaction
}

func newMemStore() *memStore {
	return &memStore{seqs: make(map[string]int)}
}

func (m *memStore) Append(_ context.Context, day string, build func(seq int) (domain.Transaction, []byte)) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[day]++
	tx, _ := build(m.seqs[day])
	m.txs = append(m.txs, tx)
	return tx, nil
}

func (m *memStore) ByBuyer(_ context.Context, buyerID string, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].BuyerID == buyerID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m *memStore) All(context.Context) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transaction, len(m.txs))
	copy(out, m.txs)
	return out, nil
}

func closedTicket(buyer string) *ticketdomain.Ticket {
	return &ticketdomain.Ticket{
		ChannelID: "ch-1",
		BuyerID:   buyer,
		Items: []ticketdomain.LineItem{
			{ProductID: 1, Name: "Limited Skin", UnitPrice: 80000, Qty: 1},
		},
		TotalPrice: 80000,
		Status:     ticketdomain.StatusClosed,
		Method:     ticketdomain.MethodQRIS,
		AdminID:    "admin-1",
	}
}

func newRecorder(store Store, at time.Time) *Recorder {
	r := NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)), store)
	r.now = func() time.Time { return at }
	return r
}

func TestRecordFormatsInvoice(t *testing.T) {
	store := newMemStore()
	r := newRecorder(store, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	inv, err := r.Record(context.Background(), closedTicket("buyer-1"))
	require.NoError(t, err)
	assert.Equal(t, "INV-20260829-0001", inv)

	all, err := r.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "QRIS", all[0].Method)
	assert.Equal(t, "admin-1", all[0].AdminID)
	assert.False(t, all[0].Synthetic)
}

func TestRecordSequenceIncrementsWithinDay(t *testing.T) {
	store := newMemStore()
	r := newRecorder(store, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	var invoices []string
	for i := 0; i < 3; i++ {
		inv, err := r.Record(context.Background(), closedTicket("buyer-1"))
		require.NoError(t, err)
		invoices = append(invoices, inv)
	}
	assert.Equal(t, []string{"INV-20260829-0001", "INV-20260829-0002", "INV-20260829-0003"}, invoices)
}

func TestRecordConcurrentDistinctInvoices(t *testing.T) {
	store := newMemStore()
	r := newRecorder(store, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	const n = 20
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := r.Record(context.Background(), closedTicket("buyer-1"))
			if err != nil {
				t.Errorf("record: %v", err)
				return
			}
			results <- inv
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for inv := range results {
		assert.False(t, seen[inv], "duplicate invoice %s", inv)
		seen[inv] = true
	}
	assert.Len(t, seen, n)
}

func TestSequenceResetsOnNewDay(t *testing.T) {
	store := newMemStore()
	r := newRecorder(store, time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC))

	inv, err := r.Record(context.Background(), closedTicket("buyer-1"))
	require.NoError(t, err)
	assert.Equal(t, "INV-20260829-0001", inv)

	r.now = func() time.Time { return time.Date(2026, 8, 30, 0, 1, 0, 0, time.UTC) }
	inv, err = r.Record(context.Background(), closedTicket("buyer-1"))
	require.NoError(t, err)
	assert.Equal(t, "INV-20260830-0001", inv)
}

func TestRecordUnsetMethodBecomesDash(t *testing.T) {
	store := newMemStore()
	r := newRecorder(store, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	tk := closedTicket("buyer-1")
	tk.Method = ticketdomain.MethodNone
	_, err := r.Record(context.Background(), tk)
	require.NoError(t, err)

	all, err := r.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "-", all[0].Method)
}

func TestRecordSyntheticConsumesNumber(t *testing.T) {
	store := newMemStore()
	r := newRecorder(store, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	items := []ticketdomain.LineItem{{ProductID: 3, Name: "Gamepass", UnitPrice: 38000, Qty: 2}}
	inv, err := r.RecordSynthetic(context.Background(), "buyer-2", items, "", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-20260829-0001", inv)

	all, err := r.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Synthetic)
	assert.Equal(t, "-", all[0].Method)
	assert.Equal(t, int64(76000), all[0].TotalPrice)

	// A real record after a synthetic one gets the next number.
	inv, err = r.Record(context.Background(), closedTicket("buyer-1"))
	require.NoError(t, err)
	assert.Equal(t, "INV-20260829-0002", inv)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	store := newMemStore()
	r := newRecorder(store, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 7; i++ {
		_, err := r.Record(context.Background(), closedTicket("buyer-1"))
		require.NoError(t, err)
	}
	_, err := r.Record(context.Background(), closedTicket("buyer-2"))
	require.NoError(t, err)

	hist, err := r.History(context.Background(), "buyer-1", 0)
	require.NoError(t, err)
	require.Len(t, hist, 5)
	assert.Equal(t, "INV-20260829-0007", hist[0].Invoice)
	assert.Equal(t, "INV-20260829-0003", hist[4].Invoice)
}
