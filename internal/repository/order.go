package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/paging"
)

const (
	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND is_active AND stock >= $2`

	productStockSQL = `SELECT stock, is_active FROM products WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (id, user_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertOrderItemSQL = `INSERT INTO order_items
		(order_id, product_id, product_name, sku, unit_price, discount, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	insertOrderAddressSQL = `INSERT INTO order_addresses
		(order_id, primary_address, secondary_address, city, state, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	markCartOrderedSQL = `UPDATE carts SET status = 'ordered', updated_at = now()
		WHERE id = $1 AND status = 'active'`

	orderColumns = `o.id, o.user_id, u.email, o.status, o.total, o.created_at, o.updated_at`

	orderFrom = ` FROM orders o JOIN users u ON u.id = o.user_id`

	getOrderByIDSQL = `SELECT ` + orderColumns + orderFrom + ` WHERE o.id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + orderFrom +
		` WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id`

	latestOrdersSQL = `SELECT ` + orderColumns + orderFrom + ` ORDER BY o.created_at DESC, o.id LIMIT $1`

	listOrderItemsSQL = `SELECT id, product_id, product_name, sku, unit_price, discount, quantity, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY id`

	getOrderAddressSQL = `SELECT primary_address, secondary_address, city, state, postal_code, country
		FROM order_addresses WHERE order_id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Place persists the order, decrements stock and closes the cart in a single
// transaction. Stock is only decremented when it still covers the quantity,
// so two concurrent checkouts can never oversell.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order, cartID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning checkout: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, item := range o.Items {
		if item.ProductID == nil {
			return &order.ProductUnavailableError{}
		}
		if err := decrementStock(ctx, tx, *item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, string(o.Status), o.Total, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}
	for i := range o.Items {
		item := &o.Items[i]
		if err := tx.QueryRow(ctx, insertOrderItemSQL,
			o.ID, item.ProductID, item.ProductName, item.SKU,
			item.UnitPrice, item.Discount, item.Quantity, item.Subtotal,
		).Scan(&item.ID); err != nil {
			return fmt.Errorf("inserting item of order %q: %w", o.ID, err)
		}
	}
	a := o.Address
	if _, err := tx.Exec(ctx, insertOrderAddressSQL, o.ID,
		a.PrimaryAddress, a.SecondaryAddress, a.City, a.State, a.PostalCode, a.Country,
	); err != nil {
		return fmt.Errorf("inserting address of order %q: %w", o.ID, err)
	}

	tag, err := tx.Exec(ctx, markCartOrderedSQL, cartID)
	if err != nil {
		return fmt.Errorf("closing cart %d: %w", cartID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing checkout: %w", err)
	}
	return nil
}

func decrementStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error {
	tag, err := tx.Exec(ctx, decrementStockSQL, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock of product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var (
		stock  int
		active bool
	)
	err = tx.QueryRow(ctx, productStockSQL, productID).Scan(&stock, &active)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return &order.ProductUnavailableError{ProductID: productID}
	case err != nil:
		return fmt.Errorf("reading stock of product %d: %w", productID, err)
	case !active:
		return &order.ProductUnavailableError{ProductID: productID}
	default:
		return &cart.InsufficientStockError{ProductID: productID, Requested: quantity, Available: stock}
	}
}

// GetByID returns an order with its items and address.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", id, err)
	}
	if o.Items, err = pgx.CollectRows(rows, scanOrderItem); err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", id, err)
	}

	a := &o.Address
	err = r.pool.QueryRow(ctx, getOrderAddressSQL, id).Scan(
		&a.PrimaryAddress, &a.SecondaryAddress, &a.City, &a.State, &a.PostalCode, &a.Country,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting address of order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders newest first, without items.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns one page of orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter, p paging.Page) ([]order.Order, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders o`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY o.created_at DESC, o.id LIMIT $%d OFFSET $%d`,
		orderColumns, orderFrom, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return orders, total, nil
}

// Latest returns the n most recent orders.
func (r *OrderRepository) Latest(ctx context.Context, n int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, latestOrdersSQL, n)
	if err != nil {
		return nil, fmt.Errorf("listing latest orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus changes the status only while it still equals from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrStatusChanged
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.UserEmail, &status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var item order.Item
	err := row.Scan(
		&item.ID, &item.ProductID, &item.ProductName, &item.SKU,
		&item.UnitPrice, &item.Discount, &item.Quantity, &item.Subtotal,
	)
	return item, err
}
