package repository

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/storefront/db"
)

const uniqueViolationCode = "23505"

const (
	createMigrationsTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	// Serializes concurrent migrators, e.g. several replicas starting at once.
	migrationLockSQL = `SELECT pg_advisory_xact_lock(7262300117)`

	migrationAppliedSQL = `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`

	recordMigrationSQL = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations applies the embedded migrations that have not been applied
// yet, each in its own transaction and in file name order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, lg *zap.Logger) error {
	if _, err := pool.Exec(ctx, createMigrationsTableSQL); err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}

	names, err := fs.Glob(db.Migrations, "migrations/*.sql")
	if err != nil {
		return errors.Wrap(err, "list migrations")
	}
	sort.Strings(names)

	for _, name := range names {
		applied, err := applyMigration(ctx, pool, name)
		if err != nil {
			return errors.Wrapf(err, "migration %s", name)
		}
		if applied {
			lg.Info("Applied migration", zap.String("name", name))
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	script, err := fs.ReadFile(db.Migrations, name)
	if err != nil {
		return false, errors.Wrap(err, "read")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, migrationLockSQL); err != nil {
		return false, errors.Wrap(err, "lock")
	}
	var applied bool
	if err := tx.QueryRow(ctx, migrationAppliedSQL, name).Scan(&applied); err != nil {
		return false, errors.Wrap(err, "check applied")
	}
	if applied {
		return false, nil
	}
	if _, err := tx.Exec(ctx, string(script)); err != nil {
		return false, errors.Wrap(err, "exec")
	}
	if _, err := tx.Exec(ctx, recordMigrationSQL, name); err != nil {
		return false, errors.Wrap(err, "record")
	}
	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit")
	}
	return true, nil
}

// uniqueViolation returns the violated constraint name when err is a unique
// constraint violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}
