package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/domain/assignments"
	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
	"github.com/Spok95/studio-billing/internal/domain/payments"
	"github.com/Spok95/studio-billing/internal/domain/plans"
	"github.com/Spok95/studio-billing/internal/domain/reservations"
)

type TxMode int

const (
	// ReadWrite runs serializable.
	ReadWrite TxMode = iota
	// ReadOnly reads one consistent snapshot.
	ReadOnly
)

// Store opens a transaction and hands repos bound to it. Returning an error
// from fn rolls everything back. Serialization failures come back wrapped in
// ErrIntegrity.
type Store interface {
	InTx(ctx context.Context, mode TxMode, fn func(ctx context.Context, r Repos) error) error
}

type Repos struct {
	Members      MemberRepo
	Plans        PlanRepo
	Assignments  AssignmentRepo
	Ledgers      LedgerRepo
	Debts        DebtRepo
	Payments     PaymentRepo
	Reservations ReservationRepo
}

type MemberRepo interface {
	Get(ctx context.Context, id int64) (*members.Member, error)
}

type PlanRepo interface {
	Create(ctx context.Context, p plans.Plan) (*plans.Plan, error)
	Update(ctx context.Context, p plans.Plan) (*plans.Plan, error)
	Get(ctx context.Context, id int64) (*plans.Plan, error)
	List(ctx context.Context, onlyActive bool) ([]plans.Plan, error)
	FindActiveWeekly(ctx context.Context, classesPerWeek int) (*plans.Plan, error)
	ActiveWeeklyConflict(ctx context.Context, classesPerWeek int, exceptID int64) (bool, error)
	CountReferences(ctx context.Context, id int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

type AssignmentRepo interface {
	Create(ctx context.Context, a assignments.Assignment) (*assignments.Assignment, error)
	Get(ctx context.Context, id int64) (*assignments.Assignment, error)
	Update(ctx context.Context, a assignments.Assignment) error
	ListByMember(ctx context.Context, memberID int64) ([]assignments.Assignment, error)
	CapacityAt(ctx context.Context, memberID int64, day time.Time) (int, error)
	ListDueForRenewal(ctx context.Context, day time.Time) ([]assignments.Assignment, error)
}

type LedgerRepo interface {
	// Acquire returns the member's ledger, creating it if needed, locked for
	// the rest of the transaction.
	Acquire(ctx context.Context, memberID int64) (*ledgers.Ledger, error)
	Get(ctx context.Context, memberID int64) (*ledgers.Ledger, error)
	Save(ctx context.Context, l ledgers.Ledger) error
	ListBillable(ctx context.Context) ([]ledgers.Ledger, error)
	ListLocked(ctx context.Context) ([]ledgers.Ledger, error)
}

type DebtRepo interface {
	Create(ctx context.Context, d debts.Debt) (*debts.Debt, error)
	GetByMonth(ctx context.Context, memberID int64, month time.Time) (*debts.Debt, error)
	Delete(ctx context.Context, id int64) error
	Save(ctx context.Context, d debts.Debt) error
	ListOpen(ctx context.Context, memberID int64) ([]debts.Debt, error)
	ListByMember(ctx context.Context, memberID int64) ([]debts.Debt, error)
	CountByMember(ctx context.Context, memberID int64) (int, error)
	SumOriginal(ctx context.Context, memberID int64) (decimal.Decimal, error)
	ListPastDue(ctx context.Context, day time.Time) ([]debts.Debt, error)
	OverdueSummary(ctx context.Context, memberID int64) (int, decimal.Decimal, error)
}

type PaymentRepo interface {
	Create(ctx context.Context, p payments.Payment) (*payments.Payment, error)
	Get(ctx context.Context, id int64) (*payments.Payment, error)
	SetState(ctx context.Context, id int64, state payments.State) error
	SumConfirmed(ctx context.Context, memberID int64) (decimal.Decimal, error)
	ListByMember(ctx context.Context, memberID int64) ([]payments.Payment, error)
}

type ReservationRepo interface {
	GetSlot(ctx context.Context, id int64) (*reservations.Slot, error)
	Get(ctx context.Context, id int64) (*reservations.Reservation, error)
	ListActive(ctx context.Context, memberID int64) ([]reservations.Reservation, error)
	CountActive(ctx context.Context, memberID int64) (int, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, res reservations.Reservation) (*reservations.Reservation, error)
	Update(ctx context.Context, res reservations.Reservation) error
}
