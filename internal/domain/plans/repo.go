package plans

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Spok95/studio-billing/internal/domain"
)

type Repo struct {
	db domain.DBTX
}

func NewRepo(db domain.DBTX) *Repo { return &Repo{db: db} }

const planCols = `id, name, description, kind, classes_per_week, monthly_price, per_class_price, active, created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Kind, &p.ClassesPerWeek,
		&p.MonthlyPrice, &p.PerClassPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// uniqueViolation maps the partial unique index on active weekly capacity.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCapacity
	}
	return err
}

func (r *Repo) Create(ctx context.Context, p Plan) (*Plan, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO plans (name, description, kind, classes_per_week, monthly_price, per_class_price, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+planCols,
		p.Name, p.Description, p.Kind, p.ClassesPerWeek, p.MonthlyPrice, p.PerClassPrice, p.Active)
	out, err := scanPlan(row)
	if err != nil {
		return nil, uniqueViolation(err)
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, p Plan) (*Plan, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE plans
		SET name=$2, description=$3, kind=$4, classes_per_week=$5,
		    monthly_price=$6, per_class_price=$7, active=$8, updated_at=now()
		WHERE id=$1
		RETURNING `+planCols,
		p.ID, p.Name, p.Description, p.Kind, p.ClassesPerWeek, p.MonthlyPrice, p.PerClassPrice, p.Active)
	out, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, uniqueViolation(err)
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (*Plan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx, `SELECT `+planCols+` FROM plans WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *Repo) List(ctx context.Context, onlyActive bool) ([]Plan, error) {
	q := `SELECT ` + planCols + ` FROM plans`
	if onlyActive {
		q += ` WHERE active`
	}
	q += ` ORDER BY kind, classes_per_week, name`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FindActiveWeekly возвращает активный недельный план на n занятий или nil.
func (r *Repo) FindActiveWeekly(ctx context.Context, classesPerWeek int) (*Plan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx, `
		SELECT `+planCols+` FROM plans
		WHERE active AND kind='weekly' AND classes_per_week=$1
		LIMIT 1`, classesPerWeek))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ActiveWeeklyConflict reports whether another active weekly plan (not exceptID)
// already uses classesPerWeek.
func (r *Repo) ActiveWeeklyConflict(ctx context.Context, classesPerWeek int, exceptID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM plans
			WHERE active AND kind='weekly' AND classes_per_week=$1 AND id<>$2
		)`, classesPerWeek, exceptID).Scan(&exists)
	return exists, err
}

// CountReferences считает ссылки на план из назначений, леджеров и долгов.
func (r *Repo) CountReferences(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM assignments WHERE plan_id=$1)
		     + (SELECT count(*) FROM account_ledgers WHERE current_plan_id=$1)
		     + (SELECT count(*) FROM monthly_debts WHERE plan_id=$1)`, id).Scan(&n)
	return n, err
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM plans WHERE id=$1`, id)
	return err
}
