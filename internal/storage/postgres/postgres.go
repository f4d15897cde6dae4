package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the shared pgx connection pool every store in this package is
// constructed over.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a connection pool for the DSN and verifies it with a ping.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// uniqueViolation is the Postgres error code behind storage.ErrDuplicateKey.
const uniqueViolation = "23505"

// errIsDuplicate reports whether err is a unique constraint violation. The
// stores translate it into storage.ErrDuplicateKey so callers never see a
// driver error.
func errIsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// errIsNoRows reports whether err is pgx's empty query result, translated
// into storage.ErrNotFound by the stores.
func errIsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
