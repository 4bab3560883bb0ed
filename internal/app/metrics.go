package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
)

// metrics counts business events on the OpenTelemetry meter. It implements
// handler.Observer.
type metrics struct {
	ordersPlaced    metric.Int64Counter
	orderRevenue    metric.Float64Counter
	usersRegistered metric.Int64Counter
	cartsExpired    metric.Int64Counter
}

func newMetrics(provider metric.MeterProvider) (*metrics, error) {
	meter := provider.Meter("storefront")

	var (
		m   metrics
		err error
	)
	if m.ordersPlaced, err = meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders placed at checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if m.orderRevenue, err = meter.Float64Counter("storefront.orders.revenue",
		metric.WithDescription("Sum of placed order totals"),
	); err != nil {
		return nil, errors.Wrap(err, "order revenue counter")
	}
	if m.usersRegistered, err = meter.Int64Counter("storefront.users.registered",
		metric.WithDescription("Customer accounts created"),
	); err != nil {
		return nil, errors.Wrap(err, "users registered counter")
	}
	if m.cartsExpired, err = meter.Int64Counter("storefront.carts.expired",
		metric.WithDescription("Active carts marked expired by the sweep"),
	); err != nil {
		return nil, errors.Wrap(err, "carts expired counter")
	}
	return &m, nil
}

func (m *metrics) OrderPlaced(ctx context.Context, o *order.Order) {
	m.ordersPlaced.Add(ctx, 1)
	m.orderRevenue.Add(ctx, o.Total.InexactFloat64())
}

func (m *metrics) UserRegistered(ctx context.Context, _ *user.User) {
	m.usersRegistered.Add(ctx, 1)
}

// countExpired wraps repo so every sweep adds its result to the expired
// carts counter.
func (m *metrics) countExpired(repo cart.ExpiryRepository) cart.ExpiryRepository {
	return expiryCounter{repo: repo, counter: m.cartsExpired}
}

type expiryCounter struct {
	repo    cart.ExpiryRepository
	counter metric.Int64Counter
}

func (c expiryCounter) ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := c.repo.ExpireActiveBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	c.counter.Add(ctx, n)
	return n, nil
}
