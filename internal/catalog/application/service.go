package application

import (
	"context"
	"log/slog"

	"github.com/celstore/storefront/internal/catalog/domain"
)

// Service owns the product catalog: staff-driven CRUD plus the spotlight
// flag, with cached reads for the hot browse path.
type Service struct {
	log   *slog.Logger
	store Store
	cache *Cache
}

func NewService(log *slog.Logger, store Store, cache *Cache) *Service {
	return &Service{log: log, store: store, cache: cache}
}

func (s *Service) Get(ctx context.Context, id int) (domain.Product, error) {
	products, err := s.cache.Get(ctx, false)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

// List returns the catalog in creation order, optionally filtered to one
// category. An empty category means everything.
func (s *Service) List(ctx context.Context, category string) ([]domain.Product, error) {
	products, err := s.cache.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return products, nil
	}
	var out []domain.Product
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

// Spotlighted returns the currently featured products.
func (s *Service) Spotlighted(ctx context.Context) ([]domain.Product, error) {
	products, err := s.cache.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	var out []domain.Product
	for _, p := range products {
		if p.Spotlight {
			out = append(out, p)
		}
	}
	return out, nil
}

// Add creates a new product. The id is chosen by staff and immutable.
func (s *Service) Add(ctx context.Context, id int, name string, price int64, category string) (domain.Product, error) {
	p, err := domain.NewProduct(id, name, price, category)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return domain.Product{}, err
	}
	s.cache.Invalidate()
	s.log.Info("product added", "id", p.ID, "name", p.Name, "price", p.Price)
	return p, nil
}

// Update replaces the name, price and category of an existing product.
func (s *Service) Update(ctx context.Context, id int, name string, price int64, category string) (domain.Product, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	p, err := domain.NewProduct(id, name, price, category)
	if err != nil {
		return domain.Product{}, err
	}
	p.Spotlight = existing.Spotlight
	if err := s.store.Update(ctx, p); err != nil {
		return domain.Product{}, err
	}
	s.cache.Invalidate()
	s.log.Info("product updated", "id", p.ID)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.Info("product deleted", "id", id)
	return nil
}

// SetSpotlight toggles the featured flag. Turning a product on is refused
// once MaxSpotlight products are already featured; turning off is always
// allowed.
func (s *Service) SetSpotlight(ctx context.Context, id int, on bool) error {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if on && !p.Spotlight {
		products, err := s.store.List(ctx)
		if err != nil {
			return err
		}
		count := 0
		for _, q := range products {
			if q.Spotlight {
				count++
			}
		}
		if count >= domain.MaxSpotlight {
			return domain.ErrSpotlightLimit
		}
	}
	if err := s.store.SetSpotlight(ctx, id, on); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.Info("spotlight changed", "id", id, "on", on)
	return nil
}
