package members

import (
	"strings"
	"time"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type Member struct {
	ID         int64
	Username   string
	FirstName  string
	LastName   string
	Email      string
	TelegramID *int64
	Role       Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName возвращает "Имя Фамилия", а если пусто — username.
func (m Member) DisplayName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.Username
	}
	return name
}
