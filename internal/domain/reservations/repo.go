package reservations

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

const slotCols = `id, name, weekday, starts_at, capacity, active`

const reservationCols = `r.id, r.number, r.member_id, r.slot_id, r.active, r.notes, r.created_at, r.updated_at,
	s.id, s.name, s.weekday, s.starts_at, s.capacity, s.active`

func scanSlot(row pgx.Row) (*Slot, error) {
	var (
		s  Slot
		wd int
	)
	if err := row.Scan(&s.ID, &s.Name, &wd, &s.StartsAt, &s.Capacity, &s.Active); err != nil {
		return nil, err
	}
	s.Weekday = time.Weekday(wd)
	return &s, nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var (
		r  Reservation
		wd int
	)
	if err := row.Scan(&r.ID, &r.Number, &r.MemberID, &r.SlotID, &r.Active, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
		&r.Slot.ID, &r.Slot.Name, &wd, &r.Slot.StartsAt, &r.Slot.Capacity, &r.Slot.Active); err != nil {
		return nil, err
	}
	r.Slot.Weekday = time.Weekday(wd)
	return &r, nil
}

func (r *Repo) GetSlot(ctx context.Context, id int64) (*Slot, error) {
	s, err := scanSlot(r.db.QueryRow(ctx, `SELECT `+slotCols+` FROM class_slots WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *Repo) Get(ctx context.Context, id int64) (*Reservation, error) {
	res, err := scanReservation(r.db.QueryRow(ctx, `
		SELECT `+reservationCols+`
		FROM reservations r JOIN class_slots s ON s.id = r.slot_id
		WHERE r.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

// ListActive — активные брони участника вместе со слотами.
func (r *Repo) ListActive(ctx context.Context, memberID int64) ([]Reservation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+reservationCols+`
		FROM reservations r JOIN class_slots s ON s.id = r.slot_id
		WHERE r.member_id=$1 AND r.active
		ORDER BY s.weekday, s.starts_at`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *Repo) CountActive(ctx context.Context, memberID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM reservations WHERE member_id=$1 AND active`, memberID).Scan(&n)
	return n, err
}

func (r *Repo) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE number=$1)`, number).Scan(&exists)
	return exists, err
}

func (r *Repo) Create(ctx context.Context, res Reservation) (*Reservation, error) {
	var id int64
	if err := r.db.QueryRow(ctx, `
		INSERT INTO reservations (number, member_id, slot_id, active, notes)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`, res.Number, res.MemberID, res.SlotID, res.Active, res.Notes).Scan(&id); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Update переносит бронь на другой слот или снимает её.
func (r *Repo) Update(ctx context.Context, res Reservation) error {
	_, err := r.db.Exec(ctx, `
		UPDATE reservations SET slot_id=$2, active=$3, notes=$4, updated_at=now()
		WHERE id=$1`, res.ID, res.SlotID, res.Active, res.Notes)
	return err
}
