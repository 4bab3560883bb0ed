package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	findActiveCartSQL = `SELECT id, user_id, status, created_at, updated_at
		FROM carts WHERE user_id = $1 AND status = 'active'`

	createActiveCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) WHERE status = 'active' DO NOTHING`

	listCartItemsSQL = `SELECT id, product_id, quantity, created_at
		FROM cart_items WHERE cart_id = $1 ORDER BY id`

	getCartAddressSQL = `SELECT primary_address, secondary_address, city, state, postal_code, country
		FROM cart_addresses WHERE cart_id = $1`

	addCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`

	setCartItemQuantitySQL = `UPDATE cart_items SET quantity = $2, updated_at = now() WHERE id = $1`

	removeCartItemSQL = `DELETE FROM cart_items WHERE id = $1`

	saveCartAddressSQL = `INSERT INTO cart_addresses
		(cart_id, primary_address, secondary_address, city, state, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cart_id) DO UPDATE SET
			primary_address = EXCLUDED.primary_address,
			secondary_address = EXCLUDED.secondary_address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`

	expireCartsSQL = `UPDATE carts SET status = 'expired', updated_at = now()
		WHERE status = 'active' AND created_at < $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// FindActive loads the user's active cart with its items, their products and
// the shipping address.
func (r *CartRepository) FindActive(ctx context.Context, userID int64) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, findActiveCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("finding cart of user %d: %w", userID, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart of user %d: %w", userID, err)
	}

	if c.Items, err = r.items(ctx, c.ID); err != nil {
		return nil, err
	}
	if c.Address, err = r.address(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CartRepository) items(ctx context.Context, cartID int64) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listCartItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %d: %w", cartID, err)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %d: %w", cartID, err)
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.ProductID != 0 {
			ids = append(ids, item.ProductID)
		}
	}
	products, err := getProductsByIDs(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for i := range items {
		items[i].Product = byID[items[i].ProductID]
	}
	return items, nil
}

func (r *CartRepository) address(ctx context.Context, cartID int64) (*cart.Address, error) {
	var a cart.Address
	err := r.pool.QueryRow(ctx, getCartAddressSQL, cartID).Scan(
		&a.PrimaryAddress, &a.SecondaryAddress, &a.City, &a.State, &a.PostalCode, &a.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting address of cart %d: %w", cartID, err)
	}
	return &a, nil
}

// CreateActive creates the user's active cart unless a concurrent request
// already did, and returns whichever cart is active afterwards.
func (r *CartRepository) CreateActive(ctx context.Context, userID int64) (*cart.Cart, error) {
	if _, err := r.pool.Exec(ctx, createActiveCartSQL, userID); err != nil {
		return nil, fmt.Errorf("creating cart for user %d: %w", userID, err)
	}
	return r.FindActive(ctx, userID)
}

// AddItem adds a line, or grows the existing line for the same product.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID int64, quantity int) error {
	if _, err := r.pool.Exec(ctx, addCartItemSQL, cartID, productID, quantity); err != nil {
		return fmt.Errorf("adding product %d to cart %d: %w", productID, cartID, err)
	}
	return r.touch(ctx, cartID)
}

// SetItemQuantity overwrites the quantity of a line.
func (r *CartRepository) SetItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	tag, err := r.pool.Exec(ctx, setCartItemQuantitySQL, itemID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// RemoveItem deletes a line.
func (r *CartRepository) RemoveItem(ctx context.Context, itemID int64) error {
	tag, err := r.pool.Exec(ctx, removeCartItemSQL, itemID)
	if err != nil {
		return fmt.Errorf("removing cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// SaveAddress stores or replaces the cart's shipping address.
func (r *CartRepository) SaveAddress(ctx context.Context, cartID int64, a cart.Address) error {
	_, err := r.pool.Exec(ctx, saveCartAddressSQL, cartID,
		a.PrimaryAddress, a.SecondaryAddress, a.City, a.State, a.PostalCode, a.Country,
	)
	if err != nil {
		return fmt.Errorf("saving address of cart %d: %w", cartID, err)
	}
	return r.touch(ctx, cartID)
}

// ExpireActiveBefore marks active carts created before cutoff as expired.
func (r *CartRepository) ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, expireCartsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring carts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *CartRepository) touch(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touching cart %d: %w", cartID, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c      cart.Cart
		status string
	)
	err := row.Scan(&c.ID, &c.UserID, &status, &c.CreatedAt, &c.UpdatedAt)
	c.Status = cart.Status(status)
	return c, err
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		item      cart.Item
		productID *int64
	)
	err := row.Scan(&item.ID, &productID, &item.Quantity, &item.CreatedAt)
	if productID != nil {
		item.ProductID = *productID
	}
	return item, err
}
