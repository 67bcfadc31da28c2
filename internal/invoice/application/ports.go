package application

import (
	"context"

	"github.com/celstore/storefront/internal/invoice/domain"
)

// Store is the transaction log plus the invoice counter. Append must
// allocate the day's next sequence, write the transaction built from it and
// its audit event in one storage transaction: an allocation whose
// transaction write fails must not consume a number.
type Store interface {
	Append(ctx context.Context, day string, build func(seq int) (domain.Transaction, []byte)) (domain.Transaction, error)
	ByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Transaction, error)
	All(ctx context.Context) ([]domain.Transaction, error)
}
