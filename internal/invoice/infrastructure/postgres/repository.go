package postgres

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/celstore/storefront/internal/invoice/domain"
	"github.com/celstore/storefront/pkg/tracing"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Append runs counter increment, transaction insert and outbox insert in one
// pg transaction. The ON CONFLICT upsert on the counter row both resets the
// sequence on a new day and increments it within a day, atomically.
func (r *Repository) Append(ctx context.Context, day string, build func(seq int) (domain.Transaction, []byte)) (domain.Transaction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Transaction{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var seq int
	err = tx.QueryRow(ctx, `
		INSERT INTO invoice_counter (date, sequence) VALUES ($1, 1)
		ON CONFLICT (date) DO UPDATE SET sequence = invoice_counter.sequence + 1
		RETURNING sequence`, day).Scan(&seq)
	if err != nil {
		return domain.Transaction{}, err
	}

	t, payload := build(seq)

	items, err := json.Marshal(t.Items)
	if err != nil {
		return domain.Transaction{}, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (invoice, buyer_id, items, total_price, payment_method, admin_id, created_at, is_synthetic)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.Invoice, t.BuyerID, items, t.TotalPrice, t.Method, t.AdminID, t.Timestamp, t.Synthetic)
	if err != nil {
		return domain.Transaction{}, err
	}

	headers, traceparent := tracing.Carrier(ctx)
	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status) VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"transaction", t.Invoice, "TransactionRecorded", payload, headers, traceparent)
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

func (r *Repository) ByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT invoice, buyer_id, items, total_price, payment_method, admin_id, created_at, is_synthetic
		FROM transactions
		WHERE buyer_id=$1
		ORDER BY created_at DESC
		LIMIT $2`, buyerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows)
}

func (r *Repository) All(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT invoice, buyer_id, items, total_price, payment_method, admin_id, created_at, is_synthetic
		FROM transactions
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows)
}

func scanAll(rows pgx.Rows) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for rows.Next() {
		var (
			t     domain.Transaction
			items []byte
		)
		if err := rows.Scan(&t.Invoice, &t.BuyerID, &items, &t.TotalPrice, &t.Method, &t.AdminID, &t.Timestamp, &t.Synthetic); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &t.Items); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
