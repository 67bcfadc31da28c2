package domain

import "time"

// Lifecycle events published to the audit stream.

type TicketOpened struct {
	ChannelID string     `json:"channel_id"`
	BuyerID   string     `json:"buyer_id"`
	Items     []LineItem `json:"items"`
	Total     int64      `json:"total_price"`
}

type TicketCancelled struct {
	ChannelID string `json:"channel_id"`
	BuyerID   string `json:"buyer_id"`
	ActorID   string `json:"actor_id"`
}

// BlacklistEntry bars a buyer from every storefront interaction.
type BlacklistEntry struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
