package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/paging"
)

// Status is the fulfilment state of an order.
type Status string

// Order statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
}

// Statuses lists every order status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded,
	}
}

// ParseStatus converts s to a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// CanTransitionTo reports whether an order may move from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Next returns the statuses reachable from s.
func (s Status) Next() []Status {
	return transitions[s]
}

// Sentinel errors for order operations.
var (
	ErrNotFound       = errors.New("order not found")
	ErrMissingAddress = errors.New("shipping address required")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrStatusChanged  = errors.New("order status changed concurrently")
)

// ProductUnavailableError indicates a cart line can no longer be ordered,
// because its product was deleted or deactivated.
type ProductUnavailableError struct {
	ItemID    int64
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	if e.ProductID == 0 {
		return fmt.Sprintf("product of cart item %d is no longer available", e.ItemID)
	}
	return fmt.Sprintf("product %d is no longer available", e.ProductID)
}

// TransitionError indicates a status change outside the allowed graph.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// Address is the shipping address captured when the order was placed.
type Address struct {
	PrimaryAddress   string
	SecondaryAddress string
	City             string
	State            string
	PostalCode       string
	Country          string
}

// Item is an order line. It copies the product details so the order stays
// readable after the product changes or disappears.
type Item struct {
	ID          int64
	ProductID   *int64
	ProductName string
	SKU         string
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
}

// Order represents a placed customer order.
type Order struct {
	ID        string
	UserID    int64
	UserEmail string
	Status    Status
	Total     decimal.Decimal
	Items     []Item
	Address   Address
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows the back-office order listing.
type Filter struct {
	Status Status
	UserID int64
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Place stores o, decrements stock for every line and marks the cart as
	// ordered in one transaction. A line whose stock no longer covers its
	// quantity aborts everything with *cart.InsufficientStockError.
	Place(ctx context.Context, o *Order, cartID int64) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	List(ctx context.Context, f Filter, p paging.Page) ([]Order, int, error)
	Latest(ctx context.Context, n int) ([]Order, error)
	// UpdateStatus moves the order from one status to another, returning
	// ErrStatusChanged when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

// Notifier delivers order notifications to customers.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order, email string) error
}
