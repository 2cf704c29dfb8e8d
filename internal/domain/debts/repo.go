package debts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/domain"
)

// ErrDuplicateMonth: долг за этот месяц уже существует.
var ErrDuplicateMonth = errors.New("debts: debt for month already exists")

type Repo struct {
	db domain.DBTX
}

func NewRepo(db domain.DBTX) *Repo { return &Repo{db: db} }

const debtCols = `id, member_id, month, plan_id, original, remaining, half_month, state, due_by, notes, created_at`

func scanDebt(row pgx.Row) (*Debt, error) {
	var d Debt
	if err := row.Scan(&d.ID, &d.MemberID, &d.Month, &d.PlanID, &d.Original, &d.Remaining,
		&d.HalfMonth, &d.State, &d.DueBy, &d.Notes, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func collect(rows pgx.Rows) ([]Debt, error) {
	defer rows.Close()
	var out []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, d Debt) (*Debt, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO monthly_debts (member_id, month, plan_id, original, remaining, half_month, state, due_by, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+debtCols,
		d.MemberID, d.Month, d.PlanID, d.Original, d.Remaining, d.HalfMonth, d.State, d.DueBy, d.Notes)
	out, err := scanDebt(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateMonth
		}
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetByMonth(ctx context.Context, memberID int64, month time.Time) (*Debt, error) {
	d, err := scanDebt(r.db.QueryRow(ctx,
		`SELECT `+debtCols+` FROM monthly_debts WHERE member_id=$1 AND month=$2`, memberID, month))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM monthly_debts WHERE id=$1`, id)
	return err
}

// Save обновляет остаток, статус и заметки.
func (r *Repo) Save(ctx context.Context, d Debt) error {
	_, err := r.db.Exec(ctx, `
		UPDATE monthly_debts SET remaining=$2, state=$3, notes=$4
		WHERE id=$1`, d.ID, d.Remaining, d.State, d.Notes)
	return err
}

// ListOpen returns pending, overdue and partial debts, oldest month first.
func (r *Repo) ListOpen(ctx context.Context, memberID int64) ([]Debt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+debtCols+` FROM monthly_debts
		WHERE member_id=$1 AND state IN ('pending','overdue','partial')
		ORDER BY month, id
		FOR UPDATE`, memberID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) ListByMember(ctx context.Context, memberID int64) ([]Debt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+debtCols+` FROM monthly_debts
		WHERE member_id=$1
		ORDER BY month DESC`, memberID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) CountByMember(ctx context.Context, memberID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM monthly_debts WHERE member_id=$1`, memberID).Scan(&n)
	return n, err
}

// SumOriginal — сумма исходных начислений за всё время.
func (r *Repo) SumOriginal(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(original), 0) FROM monthly_debts WHERE member_id=$1`, memberID).Scan(&sum)
	return sum, err
}

// ListPastDue returns pending and partial debts due before day.
func (r *Repo) ListPastDue(ctx context.Context, day time.Time) ([]Debt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+debtCols+` FROM monthly_debts
		WHERE state IN ('pending','partial') AND due_by < $1
		ORDER BY member_id, month`, day)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// OverdueSummary returns how many overdue debts with something left the member
// has and how much is left on them.
func (r *Repo) OverdueSummary(ctx context.Context, memberID int64) (int, decimal.Decimal, error) {
	var (
		n   int
		sum decimal.Decimal
	)
	err := r.db.QueryRow(ctx, `
		SELECT count(*), COALESCE(SUM(remaining), 0)
		FROM monthly_debts
		WHERE member_id=$1 AND state='overdue' AND remaining > 0`, memberID).Scan(&n, &sum)
	return n, sum, err
}
