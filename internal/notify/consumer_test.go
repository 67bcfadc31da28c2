package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invoicedomain "github.com/celstore/storefront/internal/invoice/domain"
	ticketdomain "github.com/celstore/storefront/internal/ticket/domain"
)

type captureSender struct {
	direct map[string][]string
	audit  []string
}

func newCaptureSender() *captureSender {
	return &captureSender{direct: make(map[string][]string)}
}

func (s *captureSender) SendDirect(_ context.Context, userID, text string) error {
	s.direct[userID] = append(s.direct[userID], text)
	return nil
}

func (s *captureSender) SendAudit(_ context.Context, text string) error {
	s.audit = append(s.audit, text)
	return nil
}

func testConsumer(sender Sender) *Consumer {
	return &Consumer{
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sender: sender,
	}
}

func TestTransactionRecordedNotifiesBuyerAndAudit(t *testing.T) {
	sender := newCaptureSender()
	c := testConsumer(sender)

	payload, err := json.Marshal(invoicedomain.TransactionRecorded{
		Invoice: "INV-20260829-0001",
		BuyerID: "buyer-1",
		Items: []ticketdomain.LineItem{
			{ProductID: 1, Name: "Limited Skin", UnitPrice: 80000, Qty: 1},
			{ProductID: 3, Name: "Gamepass", UnitPrice: 38000, Qty: 2},
		},
		TotalPrice: 156000,
		Method:     "QRIS",
		AdminID:    "admin-1",
	})
	require.NoError(t, err)

	require.NoError(t, c.handle(context.Background(), "TransactionRecorded", payload))

	require.Len(t, sender.audit, 1)
	assert.Contains(t, sender.audit[0], "INV-20260829-0001")
	assert.Contains(t, sender.audit[0], "verified by admin-1")

	require.Len(t, sender.direct["buyer-1"], 1)
	dm := sender.direct["buyer-1"][0]
	assert.Contains(t, dm, "INV-20260829-0001")
	assert.Contains(t, dm, "2x Gamepass")
	assert.Contains(t, dm, "Total: Rp 156000 (QRIS)")
}

func TestSyntheticTransactionSkipsBuyerMessage(t *testing.T) {
	sender := newCaptureSender()
	c := testConsumer(sender)

	payload, err := json.Marshal(invoicedomain.TransactionRecorded{
		Invoice:    "INV-20260829-0002",
		BuyerID:    "buyer-1",
		TotalPrice: 80000,
		Method:     "-",
		Synthetic:  true,
	})
	require.NoError(t, err)

	require.NoError(t, c.handle(context.Background(), "TransactionRecorded", payload))

	require.Len(t, sender.audit, 1)
	assert.Contains(t, sender.audit[0], "synthetic")
	assert.Empty(t, sender.direct)
}

func TestLifecycleEventsAuditOnly(t *testing.T) {
	sender := newCaptureSender()
	c := testConsumer(sender)
	ctx := context.Background()

	opened, _ := json.Marshal(ticketdomain.TicketOpened{ChannelID: "ch-1", BuyerID: "buyer-1", Total: 80000})
	require.NoError(t, c.handle(ctx, "TicketOpened", opened))

	cancelled, _ := json.Marshal(ticketdomain.TicketCancelled{ChannelID: "ch-1", ActorID: "buyer-1"})
	require.NoError(t, c.handle(ctx, "TicketCancelled", cancelled))

	assert.Len(t, sender.audit, 2)
	assert.Empty(t, sender.direct)
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	sender := newCaptureSender()
	c := testConsumer(sender)

	assert.NoError(t, c.handle(context.Background(), "SomethingElse", []byte(`{}`)))
	assert.Empty(t, sender.audit)
	assert.Empty(t, sender.direct)
}
