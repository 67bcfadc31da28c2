package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/celstore/storefront/internal/invoice/domain"
	ticketdomain "github.com/celstore/storefront/internal/ticket/domain"
)

// Recorder allocates invoice numbers and appends transactions. A single
// mutex serializes allocation so two concurrent records can never share a
// number even on backends without row-level atomic increments.
type Recorder struct {
	log   *slog.Logger
	store Store

	mu  sync.Mutex
	now func() time.Time
}

func NewRecorder(log *slog.Logger, store Store) *Recorder {
	return &Recorder{log: log, store: store, now: time.Now}
}

// Record turns a closed ticket into a transaction and returns its invoice
// number. Implements the ticket service's Recorder port.
func (r *Recorder) Record(ctx context.Context, t *ticketdomain.Ticket) (string, error) {
	tx, err := r.append(ctx, record{
		buyerID: t.BuyerID,
		items:   t.Items,
		total:   t.TotalPrice,
		method:  methodOrDash(t.Method),
		adminID: t.AdminID,
	})
	if err != nil {
		return "", err
	}
	return tx.Invoice, nil
}

// RecordSynthetic appends a test/demo transaction with no backing ticket.
// It still consumes a real invoice number so numbering stays gap-free, but
// the record is flagged and buyer notification is suppressed downstream.
func (r *Recorder) RecordSynthetic(ctx context.Context, buyerID string, items []ticketdomain.LineItem, method, adminID string) (string, error) {
	var total int64
	for _, it := range items {
		total += it.UnitPrice * int64(it.Qty)
	}
	if method == "" {
		method = "-"
	}
	tx, err := r.append(ctx, record{
		buyerID:   buyerID,
		items:     items,
		total:     total,
		method:    method,
		adminID:   adminID,
		synthetic: true,
	})
	if err != nil {
		return "", err
	}
	return tx.Invoice, nil
}

// History returns the buyer's most recent transactions, newest first.
func (r *Recorder) History(ctx context.Context, buyerID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.store.ByBuyer(ctx, buyerID, limit)
}

// All returns the full transaction log for staff reporting.
func (r *Recorder) All(ctx context.Context) ([]domain.Transaction, error) {
	return r.store.All(ctx)
}

type record struct {
	buyerID   string
	items     []ticketdomain.LineItem
	total     int64
	method    string
	adminID   string
	synthetic bool
}

func (r *Recorder) append(ctx context.Context, rec record) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	day := domain.DayKey(now)

	tx, err := r.store.Append(ctx, day, func(seq int) (domain.Transaction, []byte) {
		items := make([]ticketdomain.LineItem, len(rec.items))
		copy(items, rec.items)
		t := domain.Transaction{
			Invoice:    domain.FormatInvoice(day, seq),
			BuyerID:    rec.buyerID,
			Items:      items,
			TotalPrice: rec.total,
			Method:     rec.method,
			AdminID:    rec.adminID,
			Timestamp:  now,
			Synthetic:  rec.synthetic,
		}
		payload, _ := json.Marshal(domain.TransactionRecorded{
			Invoice:    t.Invoice,
			BuyerID:    t.BuyerID,
			Items:      t.Items,
			TotalPrice: t.TotalPrice,
			Method:     t.Method,
			AdminID:    t.AdminID,
			Synthetic:  t.Synthetic,
		})
		return t, payload
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	r.log.Info("transaction recorded", "invoice", tx.Invoice, "buyer_id", tx.BuyerID, "total", tx.TotalPrice, "synthetic", tx.Synthetic)
	return tx, nil
}

func methodOrDash(m ticketdomain.PaymentMethod) string {
	if m == ticketdomain.MethodNone {
		return "-"
	}
	return string(m)
}
