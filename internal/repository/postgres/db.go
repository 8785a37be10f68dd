package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

const (
	maxTxAttempts = 3
	txRetryPause  = 20 * time.Millisecond
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements repository.Store on top of a pgx pool. A Store returned
// by With runs every query on the given handle instead of the pool.
type Store struct {
	pool *pgxpool.Pool
	db   DB
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

func (s *Store) With(db DB) *Store {
	cp := *s
	cp.db = db
	return &cp
}

func (s *Store) handle() DB {
	if s.db != nil {
		return s.db
	}
	return s.pool
}

var txOptions = pgx.TxOptions{
	IsoLevel:   pgx.Serializable,
	AccessMode: pgx.ReadWrite,
}

// RunTx runs fn in a serializable transaction. Serialization failures and
// deadlocks are retried with a short, growing pause.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx DB) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if err = s.runTxOnce(ctx, fn); err == nil || !IsRetryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * txRetryPause):
		}
	}

	return fmt.Errorf("after %d attempts: %w", maxTxAttempts, err)
}

func (s *Store) runTxOnce(ctx context.Context, fn func(ctx context.Context, tx DB) error) error {
	tx, err := s.pool.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// InTx implements repository.Store. A Store already bound to a transaction
// runs fn inside that transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.db != nil {
		return fn(ctx, s)
	}

	return s.RunTx(ctx, func(ctx context.Context, tx DB) error {
		return fn(ctx, s.With(tx))
	})
}
