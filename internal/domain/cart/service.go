package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/logging"
)

// Service encapsulates cart business logic for one user at a time.
type Service struct {
	carts    Repository
	products ProductReader
	lg       logging.Loggers
}

// NewService creates a cart Service.
func NewService(carts Repository, products ProductReader, lg logging.Loggers) *Service {
	return &Service{carts: carts, products: products, lg: lg}
}

// Get returns the user's active cart, creating an empty one when none exists.
func (s *Service) Get(ctx context.Context, userID int64) (*Cart, error) {
	c, err := s.carts.FindActive(ctx, userID)
	if err == nil {
		return s.dropMissingProducts(ctx, c)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "find active cart")
	}

	c, err = s.carts.CreateActive(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	s.lg.Cart.Info("Created new active cart",
		zap.Int64("user_id", userID),
		zap.Int64("cart_id", c.ID),
	)
	return c, nil
}

// dropMissingProducts removes lines whose product has been deleted.
func (s *Service) dropMissingProducts(ctx context.Context, c *Cart) (*Cart, error) {
	missing := c.MissingProductItems()
	if len(missing) == 0 {
		return c, nil
	}
	for _, id := range missing {
		if err := s.carts.RemoveItem(ctx, id); err != nil && !errors.Is(err, ErrItemNotFound) {
			return nil, errors.Wrap(err, "remove item without product")
		}
		s.lg.Cart.Warn("Removed cart item without product",
			zap.Int64("cart_id", c.ID),
			zap.Int64("item_id", id),
		)
	}
	items := c.Items[:0]
	for _, item := range c.Items {
		if item.Product != nil {
			items = append(items, item)
		}
	}
	c.Items = items
	return c, nil
}

// AddProduct adds quantity units of a product, merging with an existing line.
func (s *Service) AddProduct(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return catalog.ErrProductNotFound
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	want := quantity
	existing := c.Item(productID)
	if existing != nil {
		want += existing.Quantity
	}
	if want > p.Stock {
		s.lg.Stock.Warn("Insufficient stock for cart",
			zap.Int64("product_id", productID),
			zap.Int("requested", want),
			zap.Int("available", p.Stock),
		)
		return &InsufficientStockError{ProductID: productID, Requested: want, Available: p.Stock}
	}

	if existing != nil {
		err = s.carts.SetItemQuantity(ctx, existing.ID, want)
	} else {
		err = s.carts.AddItem(ctx, c.ID, productID, quantity)
	}
	if err != nil {
		return errors.Wrapf(err, "add product %d to cart %d", productID, c.ID)
	}

	s.lg.Cart.Info("Product added to cart",
		zap.Int64("cart_id", c.ID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", want),
	)
	return nil
}

// RemoveProduct removes quantity units of a product. A zero quantity, or one
// at least as large as the line, removes the line entirely.
func (s *Service) RemoveProduct(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	item := c.Item(productID)
	if item == nil {
		return ErrItemNotFound
	}

	if quantity == 0 || quantity >= item.Quantity {
		if err := s.carts.RemoveItem(ctx, item.ID); err != nil {
			return errors.Wrapf(err, "remove item %d", item.ID)
		}
		s.lg.Cart.Info("Product removed from cart",
			zap.Int64("cart_id", c.ID),
			zap.Int64("product_id", productID),
		)
		return nil
	}

	if err := s.carts.SetItemQuantity(ctx, item.ID, item.Quantity-quantity); err != nil {
		return errors.Wrapf(err, "decrease item %d", item.ID)
	}
	s.lg.Cart.Info("Product quantity decreased",
		zap.Int64("cart_id", c.ID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", item.Quantity-quantity),
	)
	return nil
}

// UpdateQuantity sets the line quantity for a product. Non-positive
// quantities remove the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	item := c.Item(productID)
	if item == nil {
		return ErrItemNotFound
	}

	if quantity <= 0 {
		if err := s.carts.RemoveItem(ctx, item.ID); err != nil {
			return errors.Wrapf(err, "remove item %d", item.ID)
		}
		s.lg.Cart.Info("Product removed from cart",
			zap.Int64("cart_id", c.ID),
			zap.Int64("product_id", productID),
		)
		return nil
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > p.Stock {
		s.lg.Stock.Warn("Insufficient stock for cart",
			zap.Int64("product_id", productID),
			zap.Int("requested", quantity),
			zap.Int("available", p.Stock),
		)
		return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: p.Stock}
	}

	if err := s.carts.SetItemQuantity(ctx, item.ID, quantity); err != nil {
		return errors.Wrapf(err, "update item %d", item.ID)
	}
	s.lg.Cart.Info("Product quantity updated",
		zap.Int64("cart_id", c.ID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// SetAddress validates and stores the shipping address of a non-empty cart.
func (s *Service) SetAddress(ctx context.Context, userID int64, a Address) error {
	if err := a.Validate(); err != nil {
		return err
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if c.IsEmpty() {
		return ErrEmptyCart
	}
	if err := s.carts.SaveAddress(ctx, c.ID, a); err != nil {
		return errors.Wrapf(err, "save address for cart %d", c.ID)
	}
	return nil
}

// Total returns the cart total.
func (s *Service) Total(ctx context.Context, userID int64) (decimal.Decimal, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Total(), nil
}
