package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/celstore/storefront/internal/ticket/domain"
	"github.com/celstore/storefront/pkg/tracing"
)

// Repository stores tickets in the active_tickets table. A partial unique
// index on (buyer_id) WHERE status IN ('OPEN','PAID') backs the
// one-open-ticket-per-buyer invariant at the storage layer.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Save(ctx context.Context, t *domain.Ticket, eventType string, payload []byte) error {
	return r.write(ctx, t, eventType, payload, `
		INSERT INTO active_tickets (channel_id, buyer_id, items, total_price, payment_method, status, admin_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`)
}

func (r *Repository) Update(ctx context.Context, t *domain.Ticket, eventType string, payload []byte) error {
	return r.write(ctx, t, eventType, payload, `
		INSERT INTO active_tickets (channel_id, buyer_id, items, total_price, payment_method, status, admin_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (channel_id) DO UPDATE
		SET items=$3, total_price=$4, payment_method=$5, status=$6, admin_id=$7`)
}

func (r *Repository) write(ctx context.Context, t *domain.Ticket, eventType string, payload []byte, query string) error {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, query,
		t.ChannelID, t.BuyerID, items, t.TotalPrice, string(t.Method), string(t.Status), t.AdminID, t.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicateOpenTicket
	}
	if err != nil {
		return err
	}

	if eventType != "" {
		headers, traceparent := tracing.Carrier(ctx)
		_, err = tx.Exec(ctx,
			`INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status) VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
			"ticket", t.ChannelID, eventType, payload, headers, traceparent)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) Delete(ctx context.Context, channelID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM active_tickets WHERE channel_id=$1`, channelID)
	return err
}

func (r *Repository) LoadActive(ctx context.Context) ([]*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel_id, buyer_id, items, total_price, payment_method, status, admin_id, created_at
		FROM active_tickets
		WHERE status IN ('OPEN','PAID')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Ticket
	for rows.Next() {
		var (
			t      domain.Ticket
			items  []byte
			method string
			status string
		)
		if err := rows.Scan(&t.ChannelID, &t.BuyerID, &items, &t.TotalPrice, &method, &status, &t.AdminID, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &t.Items); err != nil {
			return nil, err
		}
		t.Method = domain.PaymentMethod(method)
		t.Status = domain.Status(status)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *Repository) AddBlacklist(ctx context.Context, e domain.BlacklistEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blacklist (user_id, reason, created_at) VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET reason=$2, created_at=$3`,
		e.UserID, e.Reason, e.Timestamp)
	return err
}

func (r *Repository) RemoveBlacklist(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM blacklist WHERE user_id=$1`, userID)
	return err
}

func (r *Repository) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM blacklist WHERE user_id=$1`, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) Blacklist(ctx context.Context) ([]domain.BlacklistEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, reason, created_at FROM blacklist ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BlacklistEntry
	for rows.Next() {
		var e domain.BlacklistEntry
		if err := rows.Scan(&e.UserID, &e.Reason, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
