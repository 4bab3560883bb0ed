package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// DefaultMaxAge is how long an active cart lives before it expires.
const DefaultMaxAge = 30 * 24 * time.Hour

// ExpiryRepository marks stale carts as expired.
type ExpiryRepository interface {
	ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Expirer sweeps active carts older than MaxAge.
type Expirer struct {
	repo   ExpiryRepository
	maxAge time.Duration
	now    func() time.Time
	lg     *zap.Logger
}

// NewExpirer returns an Expirer; a non-positive maxAge selects DefaultMaxAge.
func NewExpirer(repo ExpiryRepository, maxAge time.Duration, lg *zap.Logger) *Expirer {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Expirer{repo: repo, maxAge: maxAge, now: time.Now, lg: lg}
}

// Expire marks every active cart created before now minus MaxAge as expired.
// Running it twice in a row changes nothing the second time.
func (e *Expirer) Expire(ctx context.Context) (int64, error) {
	cutoff := e.now().Add(-e.maxAge)
	n, err := e.repo.ExpireActiveBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "expire carts")
	}
	e.lg.Info("Expired stale carts",
		zap.Int64("count", n),
		zap.Time("cutoff", cutoff),
	)
	return n, nil
}

// Run calls Expire every interval until ctx is done. Sweep failures are
// logged and retried on the next tick.
func (e *Expirer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Expire(ctx); err != nil && ctx.Err() == nil {
				e.lg.Error("Cart expiry sweep failed", zap.Error(err))
			}
		}
	}
}
