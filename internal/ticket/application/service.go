package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	catalogapp "github.com/celstore/storefront/internal/catalog/application"
	"github.com/celstore/storefront/internal/ticket/domain"
)

// Service is the ticket state machine. It owns the live in-memory ticket set
// and is the only writer to it; every mutation goes to durable storage first
// and only then updates memory, so a restart rebuilds the same state.
type Service struct {
	log      *slog.Logger
	store    Store
	catalog  *catalogapp.Service
	conv     Conversations
	recorder Recorder
	notifier Notifier

	// TeardownDelay is the cosmetic pause between closing a ticket and
	// deleting its conversation. Zero is valid and used in tests.
	teardownDelay time.Duration
	now           func() time.Time

	// payAccounts maps a payment method to the account the buyer should
	// transfer to, e.g. a DANA or BCA number. Unset methods get no
	// instruction message.
	payAccounts map[domain.PaymentMethod]string

	mu          sync.Mutex
	live        map[string]*domain.Ticket // channel_id -> ticket
	openByBuyer map[string]string         // buyer_id -> channel_id

	// writeMu serializes read-mutate-persist cycles so concurrent edits to
	// the same ticket apply in arrival order instead of racing clone
	// against clone.
	writeMu sync.Mutex
}

func NewService(log *slog.Logger, store Store, catalog *catalogapp.Service, conv Conversations, recorder Recorder, notifier Notifier, teardownDelay time.Duration) *Service {
	return &Service{
		log:           log,
		store:         store,
		catalog:       catalog,
		conv:          conv,
		recorder:      recorder,
		notifier:      notifier,
		teardownDelay: teardownDelay,
		now:           time.Now,
		live:          make(map[string]*domain.Ticket),
		openByBuyer:   make(map[string]string),
	}
}

// LoadActive rebuilds the live set from storage on startup.
func (s *Service) LoadActive(ctx context.Context) error {
	tickets, err := s.store.LoadActive(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		s.live[t.ChannelID] = t
		if t.Status == domain.StatusOpen || t.Status == domain.StatusPaid {
			s.openByBuyer[t.BuyerID] = t.ChannelID
		}
	}
	s.log.Info("active tickets loaded", "count", len(tickets))
	return nil
}

// Get returns a snapshot of a live ticket.
func (s *Service) Get(channelID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.live[channelID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t.Clone(), nil
}

// Open creates a ticket for the buyer's first item pick. The one-open-ticket
// rule is enforced by reserving the buyer slot under the lock before any I/O
// happens, so two rapid clicks cannot both pass the check; the storage-level
// unique index is the second line of defense.
func (s *Service) Open(ctx context.Context, buyerID string, productID, qty int) (*domain.Ticket, error) {
	if qty < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	s.mu.Lock()
	existing, held := s.openByBuyer[buyerID]
	s.mu.Unlock()

	// The recorded conversation may be gone (deleted out of band); a stale
	// ticket frees the slot. The existence check is a platform round-trip,
	// so it runs outside the lock and the slot is re-checked after.
	stale := false
	if held && existing != "" {
		if alive, err := s.conv.Exists(ctx, existing); err == nil && !alive {
			stale = true
		}
	}

	s.mu.Lock()
	if cur, ok := s.openByBuyer[buyerID]; ok {
		if !stale || cur != existing {
			s.mu.Unlock()
			return nil, domain.ErrDuplicateOpenTicket
		}
		delete(s.live, existing)
	}
	// Reserve the slot before releasing the lock.
	s.openByBuyer[buyerID] = ""
	s.mu.Unlock()

	if stale {
		if err := s.store.Delete(ctx, existing); err != nil {
			s.log.Warn("stale ticket cleanup failed", "channel_id", existing, "err", err)
		}
	}

	t, err := s.open(ctx, buyerID, productID, qty)
	if err != nil {
		s.mu.Lock()
		if s.openByBuyer[buyerID] == "" {
			delete(s.openByBuyer, buyerID)
		}
		s.mu.Unlock()
		return nil, err
	}
	return t, nil
}

func (s *Service) open(ctx context.Context, buyerID string, productID, qty int) (*domain.Ticket, error) {
	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	channelID, err := s.conv.Create(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	t, err := domain.NewTicket(channelID, buyerID, domain.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Qty:       qty,
	}, s.now())
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(domain.TicketOpened{
		ChannelID: t.ChannelID,
		BuyerID:   t.BuyerID,
		Items:     t.Items,
		Total:     t.TotalPrice,
	})
	if err := s.store.Save(ctx, t, "TicketOpened", payload); err != nil {
		// Roll back the conversation so the buyer is not left with an
		// orphaned channel and no ticket.
		_ = s.conv.Delete(ctx, channelID)
		return nil, err
	}

	s.mu.Lock()
	s.live[t.ChannelID] = t
	s.openByBuyer[buyerID] = t.ChannelID
	s.mu.Unlock()

	s.log.Info("ticket opened", "channel_id", t.ChannelID, "buyer_id", buyerID, "product_id", productID)
	return t.Clone(), nil
}

// AddItem adds qty units of a product to an open ticket.
func (s *Service) AddItem(ctx context.Context, channelID string, actor domain.Actor, productID, qty int) (*domain.Ticket, error) {
	return s.mutate(ctx, channelID, actor, func(t *domain.Ticket) error {
		p, err := s.catalog.Get(ctx, productID)
		if err != nil {
			return err
		}
		return t.AddItem(domain.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Qty:       qty,
		})
	})
}

// RemoveItem removes qty units of a line, or the whole line when qty is nil.
// Removing the last line tears the ticket down; an open ticket never sits at
// zero items.
func (s *Service) RemoveItem(ctx context.Context, channelID string, actor domain.Actor, productID int, qty *int) (*domain.Ticket, error) {
	var emptied bool
	t, err := s.mutate(ctx, channelID, actor, func(t *domain.Ticket) error {
		var err error
		emptied, err = t.RemoveItem(productID, qty)
		if err != nil {
			return err
		}
		if emptied {
			return t.Cancel()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if emptied {
		s.log.Info("ticket emptied, tearing down", "channel_id", channelID)
		s.ScheduleTeardown(channelID, s.teardownDelay)
	}
	return t, nil
}

// SetPaymentAccounts configures the per-method transfer instructions posted
// after a buyer picks a payment method.
func (s *Service) SetPaymentAccounts(accounts map[domain.PaymentMethod]string) {
	s.payAccounts = accounts
}

// SetPaymentMethod records the buyer's choice; re-selection overwrites.
func (s *Service) SetPaymentMethod(ctx context.Context, channelID string, actor domain.Actor, m domain.PaymentMethod) (*domain.Ticket, error) {
	if m == domain.MethodNone {
		return nil, domain.ErrInvalidMethod
	}
	t, err := s.mutate(ctx, channelID, actor, func(t *domain.Ticket) error {
		return t.SetMethod(m)
	})
	if err != nil {
		return nil, err
	}
	if account, ok := s.payAccounts[m]; ok {
		if err := s.notifier.Post(ctx, channelID, fmt.Sprintf(
			"Transfer Rp %d via %s to %s, then press the paid button.",
			t.TotalPrice, m, account)); err != nil {
			s.log.Warn("payment instruction failed", "channel_id", channelID, "err", err)
		}
	}
	return t, nil
}

// MarkPaid is the buyer's "I transferred" claim; it pages staff for manual
// verification and nothing more.
func (s *Service) MarkPaid(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, error) {
	t, err := s.mutate(ctx, channelID, actor, func(t *domain.Ticket) error {
		return t.MarkPaid(actor.ID)
	})
	if err != nil {
		return nil, err
	}
	if err := s.notifier.Post(ctx, channelID, fmt.Sprintf(
		"Buyer %s claims payment of Rp %d via %s. Staff verification needed.",
		t.BuyerID, t.TotalPrice, methodLabel(t.Method))); err != nil {
		s.log.Warn("staff page failed", "channel_id", channelID, "err", err)
	}
	return t, nil
}

// VerifyAndClose is the staff gate: it records the transaction, closes the
// ticket and schedules teardown. Requires the buyer to have marked the
// ticket PAID first.
func (s *Service) VerifyAndClose(ctx context.Context, channelID string, actor domain.Actor) (invoice string, err error) {
	if !actor.Staff {
		return "", domain.ErrForbidden
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.snapshot(channelID)
	if err != nil {
		return "", err
	}
	work := t.Clone()
	if err := work.Close(actor.ID); err != nil {
		return "", err
	}

	invoice, err = s.recorder.Record(ctx, work)
	if err != nil {
		return "", err
	}

	if err := s.store.Update(ctx, work, "", nil); err != nil {
		// The transaction is already durable. The close still commits to
		// memory so a staff retry cannot record a second invoice for the
		// same ticket; teardown removes the storage row shortly.
		s.log.Error("ticket close persisted transaction but not status", "channel_id", channelID, "invoice", invoice, "err", err)
	}
	s.commit(work)

	if err := s.notifier.Post(ctx, channelID, fmt.Sprintf("Payment verified. Invoice %s. This channel closes shortly.", invoice)); err != nil {
		s.log.Warn("close notice failed", "channel_id", channelID, "err", err)
	}
	s.log.Info("ticket verified and closed", "channel_id", channelID, "invoice", invoice, "admin_id", actor.ID)
	s.ScheduleTeardown(channelID, s.teardownDelay)
	return invoice, nil
}

// Cancel abandons an open ticket. Buyer or staff.
func (s *Service) Cancel(ctx context.Context, channelID string, actor domain.Actor) error {
	payload, _ := json.Marshal(domain.TicketCancelled{ChannelID: channelID, ActorID: actor.ID})
	_, err := s.mutateWithEvent(ctx, channelID, actor, "TicketCancelled", payload, func(t *domain.Ticket) error {
		return t.Cancel()
	})
	if err != nil {
		return err
	}
	s.log.Info("ticket cancelled", "channel_id", channelID, "actor_id", actor.ID)
	s.ScheduleTeardown(channelID, s.teardownDelay)
	return nil
}

// ScheduleTeardown deletes the conversation and the ticket record after the
// grace delay. The delay is cosmetic: it only gives the buyer time to read
// the final message.
func (s *Service) ScheduleTeardown(channelID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.conv.Delete(ctx, channelID); err != nil {
			s.log.Warn("conversation delete failed", "channel_id", channelID, "err", err)
		}
		if err := s.store.Delete(ctx, channelID); err != nil {
			s.log.Warn("ticket record delete failed", "channel_id", channelID, "err", err)
		}
		s.mu.Lock()
		if t, ok := s.live[channelID]; ok {
			delete(s.live, channelID)
			if s.openByBuyer[t.BuyerID] == channelID {
				delete(s.openByBuyer, t.BuyerID)
			}
		}
		s.mu.Unlock()
		s.log.Info("ticket torn down", "channel_id", channelID)
	})
}

// Blacklist management. Staff-only except the read used by the event gate.

func (s *Service) AddBlacklist(ctx context.Context, actor domain.Actor, userID, reason string) error {
	if !actor.Staff {
		return domain.ErrForbidden
	}
	return s.store.AddBlacklist(ctx, domain.BlacklistEntry{
		UserID:    userID,
		Reason:    reason,
		Timestamp: s.now(),
	})
}

func (s *Service) RemoveBlacklist(ctx context.Context, actor domain.Actor, userID string) error {
	if !actor.Staff {
		return domain.ErrForbidden
	}
	return s.store.RemoveBlacklist(ctx, userID)
}

func (s *Service) Blacklist(ctx context.Context, actor domain.Actor) ([]domain.BlacklistEntry, error) {
	if !actor.Staff {
		return nil, domain.ErrForbidden
	}
	return s.store.Blacklist(ctx)
}

func (s *Service) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	return s.store.IsBlacklisted(ctx, userID)
}

func (s *Service) snapshot(channelID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.live[channelID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// mutate applies fn to a clone of the live ticket, persists the clone, and
// only then swaps it into the live set. A failed write leaves memory and
// storage agreeing on the old state.
func (s *Service) mutate(ctx context.Context, channelID string, actor domain.Actor, fn func(*domain.Ticket) error) (*domain.Ticket, error) {
	return s.mutateWithEvent(ctx, channelID, actor, "", nil, fn)
}

func (s *Service) mutateWithEvent(ctx context.Context, channelID string, actor domain.Actor, eventType string, payload []byte, fn func(*domain.Ticket) error) (*domain.Ticket, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.snapshot(channelID)
	if err != nil {
		return nil, err
	}
	if !t.CanMutate(actor) {
		return nil, domain.ErrForbidden
	}

	work := t.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, work, eventType, payload); err != nil {
		return nil, err
	}
	s.commit(work)
	return work.Clone(), nil
}

func (s *Service) commit(t *domain.Ticket) {
	s.mu.Lock()
	s.live[t.ChannelID] = t
	s.mu.Unlock()
}

func methodLabel(m domain.PaymentMethod) string {
	if m == domain.MethodNone {
		return "-"
	}
	return string(m)
}
