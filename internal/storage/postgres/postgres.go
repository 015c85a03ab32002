// Package postgres persists lab snapshots and the closed-trade log in
// PostgreSQL. Both tables are append-only: snapshots are keyed by
// generation, trades by trade ID, and a conflicting insert surfaces as
// storage.ErrDuplicateKey so re-persisting the same state is a no-op for
// the caller.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the shared connection pool handed to the stores.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a pool for the given DSN and verifies it with a ping
// before handing it out.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Close releases the pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// unique_violation: the code behind every append-only conflict here.
const codeUniqueViolation = "23505"

// isDuplicateKeyError reports whether err is a unique-constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// isNotFoundError reports whether err means the query matched no rows.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
