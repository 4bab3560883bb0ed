package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/logging"
)

// CartProvider returns a user's active cart.
type CartProvider interface {
	Get(ctx context.Context, userID int64) (*cart.Cart, error)
}

// Service encapsulates checkout and order management.
type Service struct {
	carts    CartProvider
	orders   Repository
	notifier Notifier
	lg       logging.Loggers
	newID    func() string
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(carts CartProvider, orders Repository, notifier Notifier, lg logging.Loggers) *Service {
	return &Service{
		carts:    carts,
		orders:   orders,
		notifier: notifier,
		lg:       lg,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// Checkout turns the user's active cart into a pending order. Stock is
// decremented atomically with the order insert; the confirmation email is
// sent afterwards and its failure does not undo the order.
func (s *Service) Checkout(ctx context.Context, userID int64, email string) (*Order, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, cart.ErrEmptyCart
	}
	if c.Address == nil {
		return nil, ErrMissingAddress
	}

	o, err := s.buildOrder(c)
	if err != nil {
		s.lg.Order.Warn("Checkout rejected",
			zap.Int64("user_id", userID),
			zap.Int64("cart_id", c.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.orders.Place(ctx, o, c.ID); err != nil {
		var stockErr *cart.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.lg.Stock.Warn("Insufficient stock at checkout",
				zap.Int64("product_id", stockErr.ProductID),
				zap.Int("requested", stockErr.Requested),
				zap.Int("available", stockErr.Available),
			)
			return nil, err
		}
		return nil, errors.Wrapf(err, "place order for cart %d", c.ID)
	}

	for _, item := range o.Items {
		s.lg.Stock.Info("Stock decremented",
			zap.Int64p("product_id", item.ProductID),
			zap.Int("quantity", item.Quantity),
		)
	}
	s.lg.Payment.Info("Order awaiting payment",
		zap.String("order_id", o.ID),
		zap.Int64("user_id", userID),
		zap.String("amount", o.Total.StringFixed(2)),
	)
	s.lg.Order.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Int64("user_id", userID),
		zap.Int("items", len(o.Items)),
	)

	if err := s.notifier.OrderPlaced(ctx, o, email); err != nil {
		s.lg.Order.Error("Order confirmation email failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
	return o, nil
}

func (s *Service) buildOrder(c *cart.Cart) (*Order, error) {
	now := s.now()
	o := &Order{
		ID:        s.newID(),
		UserID:    c.UserID,
		Status:    StatusPending,
		Total:     decimal.Zero,
		Items:     make([]Item, 0, len(c.Items)),
		Address:   Address(*c.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, line := range c.Items {
		p := line.Product
		if p == nil || !p.IsActive {
			return nil, &ProductUnavailableError{ItemID: line.ID, ProductID: line.ProductID}
		}
		if p.Stock < line.Quantity {
			return nil, &cart.InsufficientStockError{
				ProductID: p.ID,
				Requested: line.Quantity,
				Available: p.Stock,
			}
		}
		productID := p.ID
		subtotal := line.Subtotal().Round(2)
		o.Total = o.Total.Add(subtotal)
		o.Items = append(o.Items, Item{
			ProductID:   &productID,
			ProductName: p.Name,
			SKU:         p.SKU,
			UnitPrice:   p.Price,
			Discount:    decimal.Zero,
			Quantity:    line.Quantity,
			Subtotal:    subtotal,
		})
	}
	return o, nil
}

// ForUser lists a customer's orders, newest first.
func (s *Service) ForUser(ctx context.Context, userID int64) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// GetForUser returns an order owned by userID. Orders of other users are
// reported as not found.
func (s *Service) GetForUser(ctx context.Context, userID int64, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// Get returns any order by ID.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns one page of orders for the back office.
func (s *Service) List(ctx context.Context, f Filter, p paging.Page) ([]Order, int, error) {
	return s.orders.List(ctx, f, p)
}

// Latest returns the n most recent orders.
func (s *Service) Latest(ctx context.Context, n int) ([]Order, error) {
	return s.orders.Latest(ctx, n)
}

// ChangeStatus moves an order to next when the transition graph allows it.
func (s *Service) ChangeStatus(ctx context.Context, id string, next Status, adminID int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, &TransitionError{From: o.Status, To: next}
	}
	if err := s.orders.UpdateStatus(ctx, id, o.Status, next); err != nil {
		return nil, err
	}

	s.lg.Order.Info("Order status changed",
		zap.String("order_id", id),
		zap.String("from", string(o.Status)),
		zap.String("to", string(next)),
		zap.Int64("admin_id", adminID),
	)
	o.Status = next
	o.UpdatedAt = s.now()
	return o, nil
}
