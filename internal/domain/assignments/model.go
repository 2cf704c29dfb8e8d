package assignments

import "time"

type Mode string

const (
	ModeAutoRenew Mode = "auto_renew"
	ModeOneOff    Mode = "one_off"
)

// Assignment — период, в который участник держит план из каталога.
type Assignment struct {
	ID        int64
	MemberID  int64
	PlanID    int64
	StartDate time.Time
	EndDate   time.Time
	Active    bool
	Mode      Mode
	Notes     string
	CreatedBy *int64
	CreatedAt time.Time
}

// Covers reports whether day falls inside the assignment period (inclusive).
func (a Assignment) Covers(day time.Time) bool {
	return a.Active && !day.Before(a.StartDate) && !day.After(a.EndDate)
}
