package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash     Method = "cash"
	MethodTransfer Method = "transfer"
	MethodCard     Method = "card"
	MethodOther    Method = "other"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodOther:
		return true
	}
	return false
}

type State string

const (
	StateConfirmed State = "confirmed"
	StatePending   State = "pending"
	StateRejected  State = "rejected"
)

func (s State) Valid() bool {
	switch s {
	case StateConfirmed, StatePending, StateRejected:
		return true
	}
	return false
}

// Payment — запись о поступлении денег. Только confirmed влияет на баланс.
type Payment struct {
	ID         int64
	MemberID   int64
	Amount     decimal.Decimal
	PaidOn     time.Time
	Method     Method
	State      State
	Concept    string
	Memo       string
	ReceiptID  string
	RecordedBy *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
