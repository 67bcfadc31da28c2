// Package domain holds the purchase-ticket records and their invariants.
// A ticket is one private per-buyer negotiation: an ordered list of line
// items with price snapshots, a payment method, and a lifecycle status.
package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("ticket not found")
	ErrForbidden           = errors.New("actor may not touch this ticket")
	ErrInvalidState        = errors.New("operation not allowed in current ticket state")
	ErrDuplicateOpenTicket = errors.New("buyer already has an open ticket")
	ErrWrongTicketOwner    = errors.New("only the ticket owner may do this")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrInvalidMethod       = errors.New("unknown payment method")
	ErrItemNotInTicket     = errors.New("item is not in the ticket")
)

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusPaid      Status = "PAID"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)

type PaymentMethod string

const (
	MethodNone PaymentMethod = ""
	MethodQRIS PaymentMethod = "QRIS"
	MethodDANA PaymentMethod = "DANA"
	MethodBCA  PaymentMethod = "BCA"
)

// ParseMethod maps the buyer's "1"/"2"/"3" reply (or a method name) to a
// payment method. Returns MethodNone for anything else.
func ParseMethod(s string) PaymentMethod {
	switch s {
	case "1", string(MethodQRIS):
		return MethodQRIS
	case "2", string(MethodDANA):
		return MethodDANA
	case "3", string(MethodBCA):
		return MethodBCA
	}
	return MethodNone
}

// Actor is the principal behind an inbound event. Identity comes from the
// chat platform; the core only needs the id and the staff flag.
type Actor struct {
	ID    string
	Staff bool
}

// LineItem is a product snapshot inside a ticket. Name and UnitPrice are
// copied at add time; later catalog edits do not reprice open tickets.
type LineItem struct {
	ProductID int    `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Qty       int    `json:"qty"`
}

// Ticket is keyed by the private conversation it lives in.
type Ticket struct {
	ChannelID  string        `json:"channel_id"`
	BuyerID    string        `json:"buyer_id"`
	Items      []LineItem    `json:"items"`
	TotalPrice int64         `json:"total_price"`
	Status     Status        `json:"status"`
	Method     PaymentMethod `json:"payment_method"`
	AdminID    string        `json:"admin_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewTicket opens a ticket with a single line item.
func NewTicket(channelID, buyerID string, first LineItem, now time.Time) (*Ticket, error) {
	if first.Qty < 1 {
		return nil, ErrInvalidQuantity
	}
	t := &Ticket{
		ChannelID: channelID,
		BuyerID:   buyerID,
		Items:     []LineItem{first},
		Status:    StatusOpen,
		CreatedAt: now,
	}
	t.recalcTotal()
	return t, nil
}

// AddItem merges qty into an existing line or appends a new one, then
// recomputes the total.
func (t *Ticket) AddItem(item LineItem) error {
	if t.Status != StatusOpen {
		return ErrInvalidState
	}
	if item.Qty < 1 {
		return ErrInvalidQuantity
	}
	for i := range t.Items {
		if t.Items[i].ProductID == item.ProductID {
			t.Items[i].Qty += item.Qty
			t.recalcTotal()
			return nil
		}
	}
	t.Items = append(t.Items, item)
	t.recalcTotal()
	return nil
}

// RemoveItem decrements a line by qty, or deletes the whole line when qty is
// nil. A line never survives at quantity zero. Returns true when the ticket
// has no items left; the caller must tear it down rather than keep an empty
// open ticket.
func (t *Ticket) RemoveItem(productID int, qty *int) (empty bool, err error) {
	if t.Status != StatusOpen {
		return false, ErrInvalidState
	}
	for i := range t.Items {
		if t.Items[i].ProductID != productID {
			continue
		}
		if qty == nil || t.Items[i].Qty-*qty <= 0 {
			t.Items = append(t.Items[:i], t.Items[i+1:]...)
		} else {
			t.Items[i].Qty -= *qty
		}
		t.recalcTotal()
		return len(t.Items) == 0, nil
	}
	return false, ErrItemNotInTicket
}

// SetMethod records the buyer's payment method choice. Re-selection
// overwrites the previous choice.
func (t *Ticket) SetMethod(m PaymentMethod) error {
	if t.Status != StatusOpen {
		return ErrInvalidState
	}
	t.Method = m
	return nil
}

// MarkPaid is the buyer's claim that money moved. It only pages staff for
// manual verification; nothing is validated here.
func (t *Ticket) MarkPaid(claimantID string) error {
	if t.Status != StatusOpen {
		return ErrInvalidState
	}
	if claimantID != t.BuyerID {
		return ErrWrongTicketOwner
	}
	t.Status = StatusPaid
	return nil
}

// Close finalizes a staff-verified ticket. Requires the buyer to have
// claimed payment first so the audit trail always shows the PAID step.
func (t *Ticket) Close(adminID string) error {
	if t.Status != StatusPaid {
		return ErrInvalidState
	}
	t.Status = StatusClosed
	t.AdminID = adminID
	return nil
}

// Cancel abandons an open ticket without recording a transaction.
func (t *Ticket) Cancel() error {
	if t.Status != StatusOpen {
		return ErrInvalidState
	}
	t.Status = StatusCancelled
	return nil
}

// CanMutate reports whether the actor is the buyer or staff.
func (t *Ticket) CanMutate(actor Actor) bool {
	return actor.Staff || actor.ID == t.BuyerID
}

func (t *Ticket) recalcTotal() {
	var total int64
	for _, it := range t.Items {
		total += it.UnitPrice * int64(it.Qty)
	}
	t.TotalPrice = total
}

// Clone returns a deep copy so snapshots handed to renderers and the invoice
// recorder cannot alias the live ticket.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	cp.Items = make([]LineItem, len(t.Items))
	copy(cp.Items, t.Items)
	return &cp
}
