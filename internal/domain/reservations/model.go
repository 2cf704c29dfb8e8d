package reservations

import (
	"fmt"
	"time"
)

// Slot — регулярное занятие студии: день недели и время начала.
type Slot struct {
	ID       int64
	Name     string
	Weekday  time.Weekday
	StartsAt string // "HH:MM"
	Capacity int
	Active   bool
}

// Clock parses StartsAt.
func (s Slot) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.StartsAt)
	if err != nil {
		return 0, 0, fmt.Errorf("slot %d: bad start time %q: %w", s.ID, s.StartsAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextOccurrence returns the next start of the slot at or after now, in now's location.
func (s Slot) NextOccurrence(now time.Time) (time.Time, error) {
	h, m, err := s.Clock()
	if err != nil {
		return time.Time{}, err
	}
	days := (int(s.Weekday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+days, h, m, 0, 0, now.Location())
	if next.Before(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next, nil
}

type Reservation struct {
	ID        int64
	Number    string
	MemberID  int64
	SlotID    int64
	Slot      Slot
	Active    bool
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
