package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	invoicedomain "github.com/celstore/storefront/internal/invoice/domain"
	ticketdomain "github.com/celstore/storefront/internal/ticket/domain"
	"github.com/celstore/storefront/pkg/idempotency"
	"github.com/celstore/storefront/pkg/tracing"
)

// Consumer reads the audit stream and fans messages out to the sender.
// Deliveries are deduplicated by (topic, partition, offset) so a consumer
// restart cannot double-message a buyer.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	sender Sender
	idem   idempotency.Store
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, sender Sender, idem idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		sender: sender,
		idem:   idem,
		tracer: otel.Tracer("storefront-notify"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := idempotency.EventKey("kafka", fmt.Sprintf("%s:%d:%d", msg.Topic, msg.Partition, msg.Offset))
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ConsumeStorefrontEvent")

		if err := c.handle(msgCtx, headerValue(msg.Headers, "event_type"), msg.Value); err != nil {
			c.log.Error("event handling failed", "err", err)
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case "TransactionRecorded":
		var ev invoicedomain.TransactionRecorded
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		if err := c.sender.SendAudit(ctx, auditText(ev)); err != nil {
			return err
		}
		if ev.Synthetic {
			return nil
		}
		return c.sender.SendDirect(ctx, ev.BuyerID, buyerText(ev))
	case "TicketOpened":
		var ev ticketdomain.TicketOpened
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		return c.sender.SendAudit(ctx, fmt.Sprintf("Ticket opened by %s, total Rp %d", ev.BuyerID, ev.Total))
	case "TicketCancelled":
		var ev ticketdomain.TicketCancelled
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		return c.sender.SendAudit(ctx, fmt.Sprintf("Ticket %s cancelled by %s", ev.ChannelID, ev.ActorID))
	default:
		c.log.Debug("unhandled event type", "type", eventType)
		return nil
	}
}

func auditText(ev invoicedomain.TransactionRecorded) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s | buyer %s | %s | Rp %d", ev.Invoice, ev.BuyerID, ev.Method, ev.TotalPrice)
	if ev.AdminID != "" {
		fmt.Fprintf(&b, " | verified by %s", ev.AdminID)
	}
	if ev.Synthetic {
		b.WriteString(" | synthetic")
	}
	return b.String()
}

func buyerText(ev invoicedomain.TransactionRecorded) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your purchase! Invoice %s\n", ev.Invoice)
	for _, it := range ev.Items {
		fmt.Fprintf(&b, "%dx %s = Rp %d\n", it.Qty, it.Name, it.UnitPrice*int64(it.Qty))
	}
	fmt.Fprintf(&b, "Total: Rp %d (%s)", ev.TotalPrice, ev.Method)
	return b.String()
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
