package debts

import (
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StatePending State = "pending"
	StatePaid    State = "paid"
	StateOverdue State = "overdue"
	StatePartial State = "partial"
)

// Open reports whether the state still accepts payments.
func (s State) Open() bool {
	return s == StatePending || s == StateOverdue || s == StatePartial
}

// Debt is one month of billing for a member.
type Debt struct {
	ID        int64
	MemberID  int64
	Month     time.Time // первое число месяца
	PlanID    int64
	Original  decimal.Decimal
	Remaining decimal.Decimal
	HalfMonth bool
	State     State
	DueBy     time.Time
	Notes     string
	CreatedAt time.Time
}

// ApplyPayment гасит долг на amount и возвращает сколько реально списано.
// Полное покрытие переводит долг в paid, частичное в partial.
func (d *Debt) ApplyPayment(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThanOrEqual(decimal.Zero) || d.Remaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if amount.GreaterThanOrEqual(d.Remaining) {
		applied := d.Remaining
		d.Remaining = decimal.Zero
		d.State = StatePaid
		return applied
	}
	d.Remaining = d.Remaining.Sub(amount)
	d.State = StatePartial
	return amount
}

// PastDue reports whether the debt is still owed after its due date.
func (d Debt) PastDue(today time.Time) bool {
	return d.DueBy.Before(today) && d.Remaining.GreaterThan(decimal.Zero)
}
