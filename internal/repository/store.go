// Package repository implements the engine's storage on PostgreSQL with
// pgx/v5. A transaction started by Atomic travels in the context, so every
// repository call made inside the callback joins the same transaction.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutorbase/engine/internal/service"
)

type txKey struct{}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// q returns the transaction bound to the context, or the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// Atomic runs fn inside a transaction. A nested call with the callback's
// context joins the in-flight transaction instead of opening another one.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Tutors() service.TutorRepository              { return &TutorRepository{store: s} }
func (s *Store) Availability() service.AvailabilityRepository { return &AvailabilityRepository{store: s} }
func (s *Store) Ledgers() service.LedgerRepository            { return &LedgerRepository{store: s} }
func (s *Store) Sessions() service.SessionRepository          { return &SessionRepository{store: s} }
func (s *Store) Contracts() service.ContractRepository        { return &ContractRepository{store: s} }

// IsNotFound reports whether the error is "no rows".
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
