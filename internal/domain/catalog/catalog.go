// Package catalog models the product catalog: categories, products, search
// and slug generation.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/paging"
)

// Sentinel errors for catalog lookups and writes.
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrDuplicateSKU     = errors.New("sku already in use")
	ErrDuplicateSlug    = errors.New("slug already in use")
)

// Category groups products for browsing.
type Category struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID               int64
	CategoryID       *int64
	CategoryName     string
	Name             string
	Slug             string
	SKU              string
	ShortDescription string
	Description      string
	Image            string
	Price            decimal.Decimal
	DiscountPrice    decimal.NullDecimal
	Stock            int
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available reports whether quantity units can be sold right now.
func (p *Product) Available(quantity int) bool {
	return p.IsActive && p.Stock >= quantity
}

// Search filters the product listing. Zero values disable a filter.
type Search struct {
	Name             string
	SKU              string
	ShortDescription string
	MinPrice         decimal.NullDecimal
	MaxPrice         decimal.NullDecimal
	Stock            *int
	CategoryID       *int64
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	ActiveOnly       bool
}

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	Search(ctx context.Context, s Search, p paging.Page) ([]Product, int, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id int64) (*Category, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id int64) error
}
