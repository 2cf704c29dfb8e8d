package rabbitmq

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/studio-billing/internal/billing"
)

const (
	KeyPaymentConfirmed = "billing.payment.confirmed"
	KeyDebtOverdue      = "billing.debt.overdue"
)

// Event is the envelope of every published message.
type Event struct {
	ID         uuid.UUID `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type PaymentConfirmedData struct {
	MemberID        int64  `json:"member_id"`
	MemberName      string `json:"member_name"`
	PaymentID       int64  `json:"payment_id"`
	Amount          string `json:"amount"`
	PaidOn          string `json:"paid_on"`
	PreviousBalance string `json:"previous_balance"`
	NewBalance      string `json:"new_balance"`
	PlanID          *int64 `json:"plan_id,omitempty"`
	PlanName        string `json:"plan_name,omitempty"`
	ReceiptNumber   string `json:"receipt_number"`
}

type DebtOverdueData struct {
	MemberID      int64  `json:"member_id"`
	MemberName    string `json:"member_name"`
	AmountOverdue string `json:"amount_overdue"`
	MonthsOverdue int    `json:"months_overdue"`
}

// Notifier turns billing events into messages on one exchange.
type Notifier struct {
	pub      Publisher
	exchange string
	now      func() time.Time
}

func NewNotifier(pub Publisher, exchange string) *Notifier {
	return &Notifier{pub: pub, exchange: exchange, now: time.Now}
}

func (n *Notifier) envelope(typ string, data any) Event {
	return Event{ID: uuid.New(), Type: typ, OccurredAt: n.now().UTC(), Data: data}
}

func (n *Notifier) PaymentConfirmed(ctx context.Context, r billing.Receipt) error {
	data := PaymentConfirmedData{
		MemberID:        r.MemberID,
		MemberName:      r.MemberName,
		PaymentID:       r.PaymentID,
		Amount:          r.Amount.StringFixed(2),
		PaidOn:          r.PaidOn.Format(time.DateOnly),
		PreviousBalance: r.PreviousBalance.StringFixed(2),
		NewBalance:      r.NewBalance.StringFixed(2),
		PlanID:          r.PlanID,
		PlanName:        r.PlanName,
		ReceiptNumber:   r.ReceiptNumber,
	}
	return n.pub.Publish(ctx, n.exchange, KeyPaymentConfirmed, n.envelope(KeyPaymentConfirmed, data))
}

func (n *Notifier) DebtOverdue(ctx context.Context, o billing.OverdueNotice) error {
	data := DebtOverdueData{
		MemberID:      o.MemberID,
		MemberName:    o.MemberName,
		AmountOverdue: o.AmountOverdue.StringFixed(2),
		MonthsOverdue: o.MonthsOverdue,
	}
	return n.pub.Publish(ctx, n.exchange, KeyDebtOverdue, n.envelope(KeyDebtOverdue, data))
}
