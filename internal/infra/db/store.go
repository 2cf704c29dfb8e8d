package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/studio-billing/internal/billing"
	"github.com/Spok95/studio-billing/internal/domain"
	"github.com/Spok95/studio-billing/internal/domain/assignments"
	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
	"github.com/Spok95/studio-billing/internal/domain/payments"
	"github.com/Spok95/studio-billing/internal/domain/plans"
	"github.com/Spok95/studio-billing/internal/domain/reservations"
)

// Store runs billing transactions on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func txOptions(mode billing.TxMode) pgx.TxOptions {
	if mode == billing.ReadOnly {
		return pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	}
	return pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}
}

// Repos binds every repo to q.
func Repos(q domain.DBTX) billing.Repos {
	return billing.Repos{
		Members:      members.NewRepo(q),
		Plans:        plans.NewRepo(q),
		Assignments:  assignments.NewRepo(q),
		Ledgers:      ledgers.NewRepo(q),
		Debts:        debts.NewRepo(q),
		Payments:     payments.NewRepo(q),
		Reservations: reservations.NewRepo(q),
	}
}

func (s *Store) InTx(ctx context.Context, mode billing.TxMode, fn func(ctx context.Context, r billing.Repos) error) error {
	tx, err := s.pool.BeginTx(ctx, txOptions(mode))
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, Repos(tx)); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

// classify marks serialization failures and deadlocks as ErrIntegrity.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && isRetryable(pgErr.Code) {
		return fmt.Errorf("%w: %w", billing.ErrIntegrity, err)
	}
	return err
}

func isRetryable(code string) bool {
	switch code {
	case "40001", // serialization_failure
		"40P01": // deadlock_detected
		return true
	}
	return false
}
