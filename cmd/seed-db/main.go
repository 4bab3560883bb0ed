package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/paging"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/logging"
	"github.com/xenking/storefront/internal/repository"
)

func main() {
	var (
		databaseURL   string
		catalogFile   string
		adminEmail    string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to the catalog JSON file, optionally .gz")
	flag.StringVar(&adminEmail, "admin-email", "admin@mystore.com", "email of the back-office account to seed")
	flag.StringVar(&adminPassword, "admin-password", "", "password of the seeded admin (or STOREFRONT_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("STOREFRONT_SEED_ADMIN_PASSWORD")
	}
	if adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or STOREFRONT_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, adminEmail, adminPassword string) error {
	var (
		seed *catalogSeed
		pool *pgxpool.Pool
	)

	// Parse the catalog while the database comes up.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("reading catalog file", slog.String("path", catalogFile))
		var err error
		seed, err = readCatalog(catalogFile)
		return err
	})
	g.Go(func() error {
		slog.Info("connecting to database")
		p, err := repository.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		pool = p

		slog.Info("running migrations")
		if err := repository.RunMigrations(gctx, p, zap.NewNop()); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		return nil
	})
	err := g.Wait()
	if pool != nil {
		defer pool.Close()
	}
	if err != nil {
		return err
	}

	lg := logging.Nop()
	catalogSvc := catalog.NewService(
		repository.NewProductRepository(pool),
		repository.NewCategoryRepository(pool),
		lg,
	)

	categoryIDs, err := seedCategories(ctx, catalogSvc, seed.Categories)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedProducts(ctx, catalogSvc, seed.Products, categoryIDs); err != nil {
		return errors.Wrap(err, "seed products")
	}

	userRepo := repository.NewUserRepository(pool)
	if err := seedAdmin(ctx, userRepo, user.NewService(userRepo, nil, lg), adminEmail, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	return nil
}

// openCatalog opens path, transparently decompressing .gz files.
func openCatalog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return struct {
		io.Reader
		io.Closer
	}{gz, closeBoth{gz, f}}, nil
}

type closeBoth [2]io.Closer

func (c closeBoth) Close() error {
	err := c[0].Close()
	if cerr := c[1].Close(); err == nil {
		err = cerr
	}
	return err
}

func readCatalog(path string) (*catalogSeed, error) {
	rc, err := openCatalog(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	seed, err := decodeCatalog(jx.Decode(rc, 64*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	slog.Info("catalog file parsed",
		slog.Int("categories", len(seed.Categories)),
		slog.Int("products", len(seed.Products)),
	)
	return seed, nil
}

// seedCategories creates missing categories and returns the ID of every
// seeded category by name.
func seedCategories(ctx context.Context, svc *catalog.Service, seeds []categorySeed) (map[string]int64, error) {
	existing, err := svc.Categories(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(existing)+len(seeds))
	for _, c := range existing {
		ids[c.Name] = c.ID
	}

	for _, s := range seeds {
		if _, ok := ids[s.Name]; ok {
			slog.Info("category exists", slog.String("name", s.Name))
			continue
		}
		c, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: s.Name, Description: s.Description})
		if err != nil {
			return nil, errors.Wrapf(err, "create category %q", s.Name)
		}
		ids[c.Name] = c.ID
		slog.Info("created category", slog.Int64("id", c.ID), slog.String("slug", c.Slug))
	}
	return ids, nil
}

// seedProducts creates products by SKU, or updates them when the SKU is
// already present.
func seedProducts(ctx context.Context, svc *catalog.Service, seeds []productSeed, categoryIDs map[string]int64) error {
	slog.Info("upserting products", slog.Int("count", len(seeds)))

	for _, s := range seeds {
		in := s.input()
		if s.Category != "" {
			id, ok := categoryIDs[s.Category]
			if !ok {
				return errors.Errorf("product %s: unknown category %q", s.SKU, s.Category)
			}
			in.CategoryID = &id
		}

		found, _, err := svc.Search(ctx, catalog.Search{SKU: s.SKU}, paging.New(1, 1, 1, 1))
		if err != nil {
			return errors.Wrapf(err, "find product %s", s.SKU)
		}
		if len(found) > 0 {
			p, err := svc.UpdateProduct(ctx, found[0].ID, in)
			if err != nil {
				return errors.Wrapf(err, "update product %s", s.SKU)
			}
			slog.Info("updated product", slog.Int64("id", p.ID), slog.String("sku", p.SKU))
			continue
		}

		p, err := svc.CreateProduct(ctx, in)
		if err != nil {
			return errors.Wrapf(err, "create product %s", s.SKU)
		}
		slog.Info("created product", slog.Int64("id", p.ID), slog.String("sku", p.SKU), slog.String("slug", p.Slug))
	}
	return nil
}

// seedAdmin registers the back-office account if needed and grants it
// ROLE_ADMIN. An existing account keeps its password.
func seedAdmin(ctx context.Context, users user.Repository, svc *user.Service, email, password string) error {
	u, err := svc.Register(ctx, email, password)
	switch {
	case errors.Is(err, user.ErrEmailTaken):
		if u, err = users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email))); err != nil {
			return errors.Wrap(err, "load existing admin")
		}
		slog.Info("admin account exists", slog.Int64("id", u.ID))
	case err != nil:
		return err
	default:
		slog.Info("created admin account", slog.Int64("id", u.ID))
	}

	if u.IsAdmin() {
		return nil
	}
	if _, err := svc.UpdateRoles(ctx, u.ID, []user.Role{user.RoleAdmin}, u.ID); err != nil {
		return err
	}
	slog.Info("granted admin role", slog.String("email", u.Email))
	return nil
}
