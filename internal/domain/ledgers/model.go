package ledgers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the per-member account: running balance and payment standing.
// Positive balance is credit, negative is debt.
type Ledger struct {
	MemberID          int64
	CurrentPlanID     *int64
	LastPaymentDate   *time.Time
	LastPaymentAmount *decimal.Decimal
	Balance           decimal.Decimal
	Notes             string
	Active            bool
	LastBilledMonth   *time.Time
	CanReserve        bool
	PaymentDueBy      *time.Time
	CurrentMonthOwed  decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New returns the state of a freshly opened ledger.
func New(memberID int64) Ledger {
	return Ledger{
		MemberID:   memberID,
		Active:     true,
		CanReserve: true,
	}
}
