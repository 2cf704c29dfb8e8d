package members

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

const memberCols = `id, username, first_name, last_name, email, telegram_id, role, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.Username, &m.FirstName, &m.LastName, &m.Email, &m.TelegramID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (*Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `SELECT `+memberCols+` FROM members WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *Repo) GetByTelegramID(ctx context.Context, tgID int64) (*Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `SELECT `+memberCols+` FROM members WHERE telegram_id = $1`, tgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// Create регистрирует участника; повторный username обновляет профиль, но не понижает admin.
func (r *Repo) Create(ctx context.Context, m Member) (*Member, error) {
	if m.Role == "" {
		m.Role = RoleMember
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO members (username, first_name, last_name, email, telegram_id, role)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (username)
		DO UPDATE SET
			first_name  = EXCLUDED.first_name,
			last_name   = EXCLUDED.last_name,
			email       = EXCLUDED.email,
			telegram_id = COALESCE(EXCLUDED.telegram_id, members.telegram_id),
			role        = CASE WHEN members.role = 'admin' THEN members.role ELSE EXCLUDED.role END,
			updated_at  = now()
		RETURNING `+memberCols,
		m.Username, m.FirstName, m.LastName, m.Email, m.TelegramID, m.Role)
	return scanMember(row)
}
