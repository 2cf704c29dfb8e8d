package ledgers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Spok95/studio-billing/internal/domain"
)

type Repo struct {
	db domain.DBTX
}

func NewRepo(db domain.DBTX) *Repo { return &Repo{db: db} }

const ledgerCols = `member_id, current_plan_id, last_payment_date, last_payment_amount, balance, notes,
	active, last_billed_month, can_reserve, payment_due_by, current_month_owed, created_at, updated_at`

func scanLedger(row pgx.Row) (*Ledger, error) {
	var l Ledger
	if err := row.Scan(&l.MemberID, &l.CurrentPlanID, &l.LastPaymentDate, &l.LastPaymentAmount,
		&l.Balance, &l.Notes, &l.Active, &l.LastBilledMonth, &l.CanReserve, &l.PaymentDueBy,
		&l.CurrentMonthOwed, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func collect(rows pgx.Rows) ([]Ledger, error) {
	defer rows.Close()
	var out []Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Acquire создаёт леджер при первом обращении и блокирует строку до конца транзакции.
func (r *Repo) Acquire(ctx context.Context, memberID int64) (*Ledger, error) {
	fresh := New(memberID)
	if _, err := r.db.Exec(ctx, `
		INSERT INTO account_ledgers (member_id, active, can_reserve)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id) DO NOTHING`, memberID, fresh.Active, fresh.CanReserve); err != nil {
		return nil, err
	}
	return scanLedger(r.db.QueryRow(ctx,
		`SELECT `+ledgerCols+` FROM account_ledgers WHERE member_id=$1 FOR UPDATE`, memberID))
}

func (r *Repo) Get(ctx context.Context, memberID int64) (*Ledger, error) {
	l, err := scanLedger(r.db.QueryRow(ctx,
		`SELECT `+ledgerCols+` FROM account_ledgers WHERE member_id=$1`, memberID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (r *Repo) Save(ctx context.Context, l Ledger) error {
	_, err := r.db.Exec(ctx, `
		UPDATE account_ledgers SET
			current_plan_id=$2, last_payment_date=$3, last_payment_amount=$4, balance=$5,
			notes=$6, active=$7, last_billed_month=$8, can_reserve=$9, payment_due_by=$10,
			current_month_owed=$11, updated_at=now()
		WHERE member_id=$1`,
		l.MemberID, l.CurrentPlanID, l.LastPaymentDate, l.LastPaymentAmount, l.Balance,
		l.Notes, l.Active, l.LastBilledMonth, l.CanReserve, l.PaymentDueBy, l.CurrentMonthOwed)
	return err
}

// ListBillable — активные леджеры с текущим планом.
func (r *Repo) ListBillable(ctx context.Context) ([]Ledger, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ledgerCols+` FROM account_ledgers
		WHERE active AND current_plan_id IS NOT NULL
		ORDER BY member_id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) ListLocked(ctx context.Context) ([]Ledger, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ledgerCols+` FROM account_ledgers
		WHERE NOT can_reserve
		ORDER BY member_id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}
