package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/domain"
)

type Repo struct {
	db domain.DBTX
}

func NewRepo(db domain.DBTX) *Repo { return &Repo{db: db} }

const paymentCols = `id, member_id, amount, paid_on, method, state, concept, memo, receipt_id, recorded_by, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	if err := row.Scan(&p.ID, &p.MemberID, &p.Amount, &p.PaidOn, &p.Method, &p.State,
		&p.Concept, &p.Memo, &p.ReceiptID, &p.RecordedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Create(ctx context.Context, p Payment) (*Payment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO payments (member_id, amount, paid_on, method, state, concept, memo, receipt_id, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+paymentCols,
		p.MemberID, p.Amount, p.PaidOn, p.Method, p.State, p.Concept, p.Memo, p.ReceiptID, p.RecordedBy)
	return scanPayment(row)
}

func (r *Repo) Get(ctx context.Context, id int64) (*Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// SetState is the only mutation a stored payment allows.
func (r *Repo) SetState(ctx context.Context, id int64, state State) error {
	_, err := r.db.Exec(ctx, `UPDATE payments SET state=$2, updated_at=now() WHERE id=$1`, id, state)
	return err
}

func (r *Repo) SumConfirmed(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE member_id=$1 AND state='confirmed'`, memberID).Scan(&sum)
	return sum, err
}

func (r *Repo) ListByMember(ctx context.Context, memberID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentCols+` FROM payments
		WHERE member_id=$1
		ORDER BY paid_on DESC, id DESC`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
