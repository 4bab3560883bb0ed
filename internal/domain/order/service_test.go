package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/logging"
)

// --- Mock implementations ---

type mockCarts struct {
	cart *cart.Cart
	err  error
}

func (m *mockCarts) Get(_ context.Context, _ int64) (*cart.Cart, error) {
	return m.cart, m.err
}

type mockOrderRepo struct {
	placed     *Order
	placedCart int64
	placeErr   error
	byID       map[string]*Order
	updated    []Status
	updateErr  error
}

func (m *mockOrderRepo) Place(_ context.Context, o *Order, cartID int64) error {
	if m.placeErr != nil {
		return m.placeErr
	}
	m.placed = o
	m.placedCart = cartID
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, _ int64) ([]Order, error) { return nil, nil }

func (m *mockOrderRepo) List(_ context.Context, _ Filter, _ paging.Page) ([]Order, int, error) {
	return nil, 0, nil
}

func (m *mockOrderRepo) Latest(_ context.Context, _ int) ([]Order, error) { return nil, nil }

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ string, _, to Status) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, to)
	return nil
}

type mockNotifier struct {
	sent []string
	err  error
}

func (m *mockNotifier) OrderPlaced(_ context.Context, o *Order, email string) error {
	m.sent = append(m.sent, o.ID+" "+email)
	return m.err
}

// --- Helpers ---

func newTestProduct(id int64, price string, stock int) *catalog.Product {
	return &catalog.Product{
		ID:       id,
		Name:     "Product",
		SKU:      "SKU",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
}

func readyCart() *cart.Cart {
	return &cart.Cart{
		ID:     3,
		UserID: 9,
		Status: cart.StatusActive,
		Items: []cart.Item{
			{ID: 1, ProductID: 1, Product: newTestProduct(1, "10.00", 5), Quantity: 2},
			{ID: 2, ProductID: 2, Product: newTestProduct(2, "4.25", 5), Quantity: 1},
		},
		Address: &cart.Address{
			PrimaryAddress: "1 Main St",
			City:           "Springfield",
			PostalCode:     "12345",
			Country:        "US",
		},
	}
}

func newOrderService(c *cart.Cart, repo *mockOrderRepo, notifier *mockNotifier) *Service {
	svc := NewService(&mockCarts{cart: c}, repo, notifier, logging.Nop())
	svc.newID = func() string { return "order-1" }
	svc.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

// --- Tests ---

func TestService_Checkout(t *testing.T) {
	repo := &mockOrderRepo{}
	notifier := &mockNotifier{}
	svc := newOrderService(readyCart(), repo, notifier)

	o, err := svc.Checkout(context.Background(), 9, "buyer@example.com")
	require.NoError(t, err)

	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(9), o.UserID)
	assert.True(t, decimal.RequireFromString("24.25").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, "Springfield", o.Address.City)
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(1), *o.Items[0].ProductID)
	assert.True(t, decimal.NewFromInt(20).Equal(o.Items[0].Subtotal))
	assert.True(t, o.Items[0].Discount.IsZero())

	assert.Same(t, o, repo.placed)
	assert.Equal(t, int64(3), repo.placedCart)
	assert.Equal(t, []string{"order-1 buyer@example.com"}, notifier.sent)
}

func TestService_Checkout_TotalMatchesRoundedSubtotals(t *testing.T) {
	c := readyCart()
	c.Items = []cart.Item{
		{ID: 1, ProductID: 1, Product: newTestProduct(1, "1.005", 9), Quantity: 1},
		{ID: 2, ProductID: 2, Product: newTestProduct(2, "1.005", 9), Quantity: 1},
	}
	svc := newOrderService(c, &mockOrderRepo{}, &mockNotifier{})

	o, err := svc.Checkout(context.Background(), 9, "buyer@example.com")
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "1.01", o.Items[0].Subtotal.String())
	assert.Equal(t, "1.01", o.Items[1].Subtotal.String())
	sum := decimal.Zero
	for _, item := range o.Items {
		assert.True(t, item.Subtotal.Equal(item.Subtotal.Round(2)), "subtotal %s", item.Subtotal)
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, sum.Equal(o.Total), "total %s, items %s", o.Total, sum)
	assert.Equal(t, "2.02", o.Total.String())
}

func TestService_Checkout_EmailFailureKeepsOrder(t *testing.T) {
	repo := &mockOrderRepo{}
	notifier := &mockNotifier{err: errors.New("smtp down")}
	svc := newOrderService(readyCart(), repo, notifier)

	o, err := svc.Checkout(context.Background(), 9, "buyer@example.com")
	require.NoError(t, err)
	assert.NotNil(t, repo.placed)
	assert.Equal(t, "order-1", o.ID)
}

func TestService_Checkout_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *cart.Cart)
		wantIs  error
		checkAs func(t *testing.T, err error)
	}{
		{
			name:   "empty cart",
			mutate: func(c *cart.Cart) { c.Items = nil },
			wantIs: cart.ErrEmptyCart,
		},
		{
			name:   "missing address",
			mutate: func(c *cart.Cart) { c.Address = nil },
			wantIs: ErrMissingAddress,
		},
		{
			name:   "deleted product",
			mutate: func(c *cart.Cart) { c.Items[1].Product = nil; c.Items[1].ProductID = 0 },
			checkAs: func(t *testing.T, err error) {
				var e *ProductUnavailableError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, int64(2), e.ItemID)
			},
		},
		{
			name:   "inactive product",
			mutate: func(c *cart.Cart) { c.Items[0].Product.IsActive = false },
			checkAs: func(t *testing.T, err error) {
				var e *ProductUnavailableError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, int64(1), e.ProductID)
			},
		},
		{
			name:   "stock below quantity",
			mutate: func(c *cart.Cart) { c.Items[0].Product.Stock = 1 },
			checkAs: func(t *testing.T, err error) {
				var e *cart.InsufficientStockError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 2, e.Requested)
				assert.Equal(t, 1, e.Available)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := readyCart()
			tt.mutate(c)
			repo := &mockOrderRepo{}
			notifier := &mockNotifier{}
			svc := newOrderService(c, repo, notifier)

			_, err := svc.Checkout(context.Background(), 9, "buyer@example.com")
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.checkAs != nil {
				tt.checkAs(t, err)
			}
			assert.Nil(t, repo.placed)
			assert.Empty(t, notifier.sent)
		})
	}
}

func TestService_Checkout_RaceLostAtStore(t *testing.T) {
	stockErr := &cart.InsufficientStockError{ProductID: 1, Requested: 2, Available: 0}
	repo := &mockOrderRepo{placeErr: stockErr}
	notifier := &mockNotifier{}
	svc := newOrderService(readyCart(), repo, notifier)

	_, err := svc.Checkout(context.Background(), 9, "buyer@example.com")
	var e *cart.InsufficientStockError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 0, e.Available)
	assert.Empty(t, notifier.sent)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusCancelled},
		StatusShipped:    {StatusDelivered},
		StatusDelivered:  {StatusRefunded},
	}
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestService_ChangeStatus(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"a": {ID: "a", Status: StatusPending},
		"b": {ID: "b", Status: StatusDelivered},
	}}
	svc := newOrderService(nil, repo, &mockNotifier{})
	ctx := context.Background()

	o, err := svc.ChangeStatus(ctx, "a", StatusProcessing, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Equal(t, []Status{StatusProcessing}, repo.updated)

	_, err = svc.ChangeStatus(ctx, "b", StatusPending, 1)
	var tErr *TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StatusDelivered, tErr.From)

	_, err = svc.ChangeStatus(ctx, "missing", StatusProcessing, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_GetForUser_HidesForeignOrders(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{"a": {ID: "a", UserID: 1}}}
	svc := newOrderService(nil, repo, &mockNotifier{})

	_, err := svc.GetForUser(context.Background(), 2, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	o, err := svc.GetForUser(context.Background(), 1, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", o.ID)
}
