package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/repository"
)

// cart-expiry marks active carts older than max-age as expired and exits.
// It is meant to run from cron when the server's in-process sweep is off.
func main() {
	var (
		databaseURL string
		maxAge      time.Duration
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or STOREFRONT_DATABASE_URL / DATABASE_URL env)")
	flag.DurationVar(&maxAge, "max-age", cart.DefaultMaxAge, "age after which active carts expire")
	flag.Parse()

	for _, env := range []string{"STOREFRONT_DATABASE_URL", "DATABASE_URL"} {
		if databaseURL == "" {
			databaseURL = os.Getenv(env)
		}
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}

		pool, err := repository.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		expirer := cart.NewExpirer(repository.NewCartRepository(pool), maxAge, lg.Named("cart"))
		if _, err := expirer.Expire(ctx); err != nil {
			return err
		}
		return nil
	})
}
