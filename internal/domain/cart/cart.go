// Package cart models a customer's shopping cart and the rules for changing it.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/validate"
)

// Status is the lifecycle state of a cart.
type Status string

// Cart statuses. A user has at most one active cart.
const (
	StatusActive  Status = "active"
	StatusOrdered Status = "ordered"
	StatusExpired Status = "expired"
)

// Sentinel errors for cart operations.
var (
	ErrNotFound        = errors.New("cart not found")
	ErrItemNotFound    = errors.New("product not found in the cart")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyCart       = errors.New("cart is empty")
)

// InsufficientStockError indicates a product cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Address is the shipping address attached to a cart.
type Address struct {
	PrimaryAddress   string
	SecondaryAddress string
	City             string
	State            string
	PostalCode       string
	Country          string
}

// Validate checks that the mandatory address lines are present.
func (a Address) Validate() error {
	return validate.First(
		validate.Required("primaryAddress", a.PrimaryAddress),
		validate.Required("city", a.City),
		validate.Required("postalCode", a.PostalCode),
		validate.Required("country", a.Country),
	)
}

// Item is one cart line. Product is nil when the referenced product was
// deleted after the item was added.
type Item struct {
	ID        int64
	ProductID int64
	Product   *catalog.Product
	Quantity  int
	CreatedAt time.Time
}

// Subtotal returns price times quantity, or zero for a missing product.
// Negative prices and quantities count as zero.
func (i Item) Subtotal() decimal.Decimal {
	if i.Product == nil || i.Quantity <= 0 || i.Product.Price.IsNegative() {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds the items a user intends to buy.
type Cart struct {
	ID        int64
	UserID    int64
	Status    Status
	Items     []Item
	Address   *Address
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item returns the line for productID or nil.
func (c *Cart) Item(productID int64) *Item {
	for i := range c.Items {
		if c.Items[i].Product != nil && c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total sums the subtotals of all lines whose product still exists.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount returns the number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// MissingProductItems returns the IDs of lines whose product is gone.
func (c *Cart) MissingProductItems() []int64 {
	var ids []int64
	for _, item := range c.Items {
		if item.Product == nil {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// Repository defines persistence operations for carts.
type Repository interface {
	// FindActive returns the user's active cart with items, products and
	// address loaded, or ErrNotFound.
	FindActive(ctx context.Context, userID int64) (*Cart, error)
	// CreateActive creates an active cart for the user. Concurrent callers
	// get the same cart.
	CreateActive(ctx context.Context, userID int64) (*Cart, error)
	AddItem(ctx context.Context, cartID, productID int64, quantity int) error
	SetItemQuantity(ctx context.Context, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, itemID int64) error
	SaveAddress(ctx context.Context, cartID int64, a Address) error
	// ExpireActiveBefore marks active carts created before cutoff as expired
	// and returns how many changed.
	ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProductReader loads catalog products.
type ProductReader interface {
	GetByID(ctx context.Context, id int64) (*catalog.Product, error)
}
