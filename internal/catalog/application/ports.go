package application

import (
	"context"

	"github.com/celstore/storefront/internal/catalog/domain"
)

// Store is the durable product record store. List returns products in
// creation order; implementations report domain.ErrNotFound and
// domain.ErrDuplicateID directly.
type Store interface {
	Get(ctx context.Context, id int) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Create(ctx context.Context, p domain.Product) error
	Update(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, id int) error
	SetSpotlight(ctx context.Context, id int, on bool) error
}
