// Package domain holds the immutable transaction log entries and the
// day-scoped invoice numbering.
package domain

import (
	"fmt"
	"time"

	ticketdomain "github.com/celstore/storefront/internal/ticket/domain"
)

// Transaction is the append-only record of a verified purchase. Items are a
// snapshot copied from the ticket at close time, never a live reference.
type Transaction struct {
	Invoice    string                  `json:"invoice"`
	BuyerID    string                  `json:"buyer_id"`
	Items      []ticketdomain.LineItem `json:"items"`
	TotalPrice int64                   `json:"total_price"`
	// Method is "-" when the buyer never picked one; the close path
	// tolerates a missing selection.
	Method    string    `json:"payment_method"`
	AdminID   string    `json:"admin_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// Synthetic marks test/demo records: kept in the log, excluded from
	// buyer-facing notification and revenue reporting.
	Synthetic bool `json:"is_synthetic"`
}

// DayKey renders the calendar day an invoice sequence is scoped to.
func DayKey(t time.Time) string {
	return t.Format("20060102")
}

// FormatInvoice renders the human-readable invoice number, e.g.
// INV-20260829-0001. Sequences restart at 1 each day.
func FormatInvoice(day string, seq int) string {
	return fmt.Sprintf("INV-%s-%04d", day, seq)
}

// TransactionRecorded is the audit-stream event emitted with every append.
type TransactionRecorded struct {
	Invoice    string                  `json:"invoice"`
	BuyerID    string                  `json:"buyer_id"`
	Items      []ticketdomain.LineItem `json:"items"`
	TotalPrice int64                   `json:"total_price"`
	Method     string                  `json:"payment_method"`
	AdminID    string                  `json:"admin_id,omitempty"`
	Synthetic  bool                    `json:"is_synthetic"`
}
