package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a transaction keeps losing to concurrent writers.
	ErrConflict = errors.New("concurrent write conflict")
	// ErrScopeGone is returned when the parent row of a position scope no longer exists.
	ErrScopeGone = errors.New("position scope no longer exists")
)

const txAttempts = 4

type PostgresStore struct {
	queries
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{queries: queries{q: db}, db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx exposes the same statements as PostgresStore bound to one transaction.
type Tx struct {
	queries
	tx *sql.Tx
}

// InTx runs fn in a transaction and commits when it returns nil. Serialization
// failures and deadlocks are retried from scratch; if they persist the error
// wraps ErrConflict.
func (s *PostgresStore) InTx(ctx context.Context, fn func(*Tx) error) error {
	err := retry.Do(
		func() error { return s.runTx(ctx, fn) },
		retry.Attempts(txAttempts),
		retry.Delay(15*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil && isRetryable(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{queries: queries{q: sqlTx}, tx: sqlTx}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.SQLState() {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
