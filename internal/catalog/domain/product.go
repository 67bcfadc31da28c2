package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrDuplicateID    = errors.New("product id already in use")
	ErrInvalidPrice   = errors.New("price must be greater than zero")
	ErrInvalidName    = errors.New("product name must not be empty")
	ErrSpotlightLimit = errors.New("spotlight limit reached")
)

// MaxSpotlight caps the number of simultaneously featured products.
const MaxSpotlight = 5

// Product is a flat price-list entry. Prices are whole rupiah; stock is not
// tracked.
type Product struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Category  string `json:"category"`
	Spotlight bool   `json:"spotlight"`
}

// NewProduct validates and normalizes a product. Categories are stored
// upper-case so "gamepass" and "GAMEPASS" land in the same catalog section.
func NewProduct(id int, name string, price int64, category string) (Product, error) {
	if strings.TrimSpace(name) == "" {
		return Product{}, ErrInvalidName
	}
	if price <= 0 {
		return Product{}, ErrInvalidPrice
	}
	return Product{
		ID:       id,
		Name:     strings.TrimSpace(name),
		Price:    price,
		Category: strings.ToUpper(strings.TrimSpace(category)),
	}, nil
}
