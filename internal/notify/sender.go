// Package notify renders the customer-facing and audit-facing messages for
// recorded transactions and ticket lifecycle events. Formatting stays thin;
// the interesting state lives upstream.
package notify

import (
	"context"
	"log/slog"
)

// Sender is the chat-platform delivery boundary.
type Sender interface {
	SendDirect(ctx context.Context, userID, text string) error
	SendAudit(ctx context.Context, text string) error
}

// LogSender writes messages to the process log. It is the default sink for
// deployments that have not wired a real platform adapter, and for tests.
// AuditChannel is the channel id a real adapter would post audit lines to;
// kept in the log fields so operators can trace where a message was headed.
type LogSender struct {
	Log          *slog.Logger
	AuditChannel string
}

func (s *LogSender) SendDirect(_ context.Context, userID, text string) error {
	s.Log.Info("direct message", "user_id", userID, "text", text)
	return nil
}

func (s *LogSender) SendAudit(_ context.Context, text string) error {
	s.Log.Info("audit message", "channel_id", s.AuditChannel, "text", text)
	return nil
}
