package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Spok95/studio-billing/internal/domain"
)

type Repo struct {
	db domain.DBTX
}

func NewRepo(db domain.DBTX) *Repo { return &Repo{db: db} }

const assignmentCols = `id, member_id, plan_id, start_date, end_date, active, mode, notes, created_by, created_at`

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	if err := row.Scan(&a.ID, &a.MemberID, &a.PlanID, &a.StartDate, &a.EndDate,
		&a.Active, &a.Mode, &a.Notes, &a.CreatedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]Assignment, error) {
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, a Assignment) (*Assignment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO assignments (member_id, plan_id, start_date, end_date, active, mode, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+assignmentCols,
		a.MemberID, a.PlanID, a.StartDate, a.EndDate, a.Active, a.Mode, a.Notes, a.CreatedBy)
	return scanAssignment(row)
}

func (r *Repo) Get(ctx context.Context, id int64) (*Assignment, error) {
	a, err := scanAssignment(r.db.QueryRow(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// Update сохраняет изменяемые поля: период, активность, заметки.
func (r *Repo) Update(ctx context.Context, a Assignment) error {
	_, err := r.db.Exec(ctx, `
		UPDATE assignments SET end_date=$2, active=$3, notes=$4
		WHERE id=$1`, a.ID, a.EndDate, a.Active, a.Notes)
	return err
}

func (r *Repo) ListByMember(ctx context.Context, memberID int64) ([]Assignment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+assignmentCols+` FROM assignments
		WHERE member_id=$1
		ORDER BY start_date DESC, id DESC`, memberID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// CapacityAt sums classes_per_week of the member's active assignments covering day.
func (r *Repo) CapacityAt(ctx context.Context, memberID int64, day time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.classes_per_week), 0)
		FROM assignments a
		JOIN plans p ON p.id = a.plan_id
		WHERE a.member_id=$1 AND a.active AND a.start_date <= $2 AND a.end_date >= $2`,
		memberID, day).Scan(&n)
	return n, err
}

// ListDueForRenewal — активные auto_renew назначения, закончившиеся до day.
func (r *Repo) ListDueForRenewal(ctx context.Context, day time.Time) ([]Assignment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+assignmentCols+` FROM assignments
		WHERE active AND mode='auto_renew' AND end_date < $1
		ORDER BY id`, day)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}
