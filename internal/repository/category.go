package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	categoryColumns = `id, name, slug, description, created_at, updated_at`

	listCategoriesSQL = `SELECT ` + categoryColumns + ` FROM categories ORDER BY name, id`

	getCategoryByIDSQL = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	categorySlugExistsSQL = `SELECT EXISTS (SELECT 1 FROM categories WHERE slug = $1)`

	createCategorySQL = `INSERT INTO categories (name, slug, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	updateCategorySQL = `UPDATE categories SET name = $2, slug = $3, description = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`
)

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, scanCategory)
}

// GetByID returns a single category.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*catalog.Category, error) {
	rows, err := r.pool.Query(ctx, getCategoryByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	return &c, nil
}

// SlugExists reports whether any category uses slug.
func (r *CategoryRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, categorySlugExistsSQL, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking category slug %q: %w", slug, err)
	}
	return exists, nil
}

// Create inserts c and fills its ID and timestamps.
func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	err := r.pool.QueryRow(ctx, createCategorySQL, c.Name, c.Slug, c.Description).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return categoryWriteError(err)
	}
	return nil
}

// Update overwrites the stored fields of c.
func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	err := r.pool.QueryRow(ctx, updateCategorySQL, c.ID, c.Name, c.Slug, c.Description).
		Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrCategoryNotFound
		}
		return categoryWriteError(err)
	}
	return nil
}

// Delete removes a category; its products keep existing uncategorized.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		return fmt.Errorf("deleting category %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func categoryWriteError(err error) error {
	if _, ok := uniqueViolation(err); ok {
		return catalog.ErrDuplicateSlug
	}
	return fmt.Errorf("writing category: %w", err)
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
