package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/paging"
)

const productColumns = `p.id, p.category_id, COALESCE(c.name, ''), p.name, p.slug, p.sku,
		p.short_description, p.description, p.image, p.price, p.discount_price,
		p.stock, p.is_active, p.created_at, p.updated_at`

const productFrom = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

const (
	getProductByIDSQL = `SELECT ` + productColumns + productFrom + ` WHERE p.id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + productFrom + ` WHERE p.id = ANY($1)`

	productSlugExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE slug = $1)`

	createProductSQL = `INSERT INTO products
		(category_id, name, slug, sku, short_description, description, image,
		 price, discount_price, stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	updateProductSQL = `UPDATE products SET
		category_id = $2, name = $3, slug = $4, sku = $5, short_description = $6,
		description = $7, image = $8, price = $9, discount_price = $10,
		stock = $11, is_active = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ catalog.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements catalog.ProductRepository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Search returns one page of products matching s, newest first, together
// with the total number of matches.
func (r *ProductRepository) Search(ctx context.Context, s catalog.Search, p paging.Page) ([]catalog.Product, int, error) {
	where, args := productFilter(s)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}
	if total == 0 {
		return []catalog.Product{}, 0, nil
	}

	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY p.id DESC LIMIT $%d OFFSET $%d`,
		productColumns, productFrom, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("searching products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("searching products: %w", err)
	}
	return products, total, nil
}

// productFilter renders the WHERE clause for s. Every value is bound as a
// parameter.
func productFilter(s catalog.Search) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if s.Name != "" {
		add("p.name ILIKE '%%' || $%d::text || '%%'", escapeLike(s.Name))
	}
	if s.SKU != "" {
		add("p.sku = $%d", s.SKU)
	}
	if s.ShortDescription != "" {
		add("p.short_description ILIKE '%%' || $%d::text || '%%'", escapeLike(s.ShortDescription))
	}
	if s.MinPrice.Valid {
		add("p.price >= $%d", s.MinPrice.Decimal)
	}
	if s.MaxPrice.Valid {
		add("p.price <= $%d", s.MaxPrice.Decimal)
	}
	if s.Stock != nil {
		add("p.stock = $%d", *s.Stock)
	}
	if s.CategoryID != nil {
		add("p.category_id = $%d", *s.CategoryID)
	}
	if s.CreatedFrom != nil {
		add("p.created_at >= $%d", *s.CreatedFrom)
	}
	if s.CreatedTo != nil {
		add("p.created_at <= $%d", *s.CreatedTo)
	}
	if s.ActiveOnly {
		conds = append(conds, "p.is_active")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	return getProductsByIDs(ctx, r.pool, ids)
}

func getProductsByIDs(ctx context.Context, q querier, ids []int64) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// SlugExists reports whether any product uses slug.
func (r *ProductRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, productSlugExistsSQL, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking product slug %q: %w", slug, err)
	}
	return exists, nil
}

// Create inserts p and fills its ID and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.CategoryID, p.Name, p.Slug, p.SKU, p.ShortDescription, p.Description, p.Image,
		p.Price, p.DiscountPrice, p.Stock, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return productWriteError(err)
	}
	return nil
}

// Update overwrites the stored fields of p.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	err := r.pool.QueryRow(ctx, updateProductSQL,
		p.ID, p.CategoryID, p.Name, p.Slug, p.SKU, p.ShortDescription, p.Description, p.Image,
		p.Price, p.DiscountPrice, p.Stock, p.IsActive,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrProductNotFound
		}
		return productWriteError(err)
	}
	return nil
}

// Delete removes a product. Cart and order lines referencing it keep their
// rows with a NULL product_id.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func productWriteError(err error) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case "products_sku_key":
			return catalog.ErrDuplicateSKU
		case "products_slug_key":
			return catalog.ErrDuplicateSlug
		}
	}
	return fmt.Errorf("writing product: %w", err)
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.CategoryName, &p.Name, &p.Slug, &p.SKU,
		&p.ShortDescription, &p.Description, &p.Image, &p.Price, &p.DiscountPrice,
		&p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
