package application

import (
	"context"

	"github.com/celstore/storefront/internal/ticket/domain"
)

// Store persists tickets and the blacklist. Save and Update take an optional
// lifecycle event (empty eventType means none) written atomically with the
// ticket row where the backend supports it.
type Store interface {
	Save(ctx context.Context, t *domain.Ticket, eventType string, payload []byte) error
	Update(ctx context.Context, t *domain.Ticket, eventType string, payload []byte) error
	Delete(ctx context.Context, channelID string) error
	// LoadActive returns every non-terminal ticket so the live set can be
	// rebuilt after a restart.
	LoadActive(ctx context.Context) ([]*domain.Ticket, error)

	AddBlacklist(ctx context.Context, e domain.BlacklistEntry) error
	RemoveBlacklist(ctx context.Context, userID string) error
	IsBlacklisted(ctx context.Context, userID string) (bool, error)
	Blacklist(ctx context.Context) ([]domain.BlacklistEntry, error)
}

// Conversations is the chat-platform boundary for the private per-ticket
// channel resource.
type Conversations interface {
	Create(ctx context.Context, buyerID string) (channelID string, err error)
	Exists(ctx context.Context, channelID string) (bool, error)
	Delete(ctx context.Context, channelID string) error
}

// Recorder turns a verified ticket into an immutable transaction and returns
// the allocated invoice number.
type Recorder interface {
	Record(ctx context.Context, t *domain.Ticket) (invoice string, err error)
}

// Notifier posts a short message into a conversation. Formatting stays out
// of the core.
type Notifier interface {
	Post(ctx context.Context, channelID, text string) error
}
