package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
	"github.com/Spok95/studio-billing/internal/domain/payments"
	"github.com/Spok95/studio-billing/internal/infra/metrics"
)

type PaymentInput struct {
	MemberID   int64
	Amount     decimal.Decimal
	PaidOn     time.Time
	Method     payments.Method
	State      payments.State
	Concept    string
	Memo       string
	ReceiptID  string
	RecordedBy *int64
}

func (s *Service) checkPayment(in *PaymentInput) error {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return validationf("amount must be greater than zero")
	}
	if in.Amount.Exponent() < -2 {
		return validationf("amount has more than two decimal places")
	}
	today := s.today()
	if in.PaidOn.IsZero() {
		in.PaidOn = today
	}
	in.PaidOn = civil(in.PaidOn)
	if in.PaidOn.After(today) {
		return validationf("payment date %s is in the future", in.PaidOn.Format(time.DateOnly))
	}
	if in.Method == "" {
		in.Method = payments.MethodCash
	}
	if !in.Method.Valid() {
		return validationf("unknown payment method %q", in.Method)
	}
	if in.State == "" {
		in.State = payments.StateConfirmed
	}
	if !in.State.Valid() {
		return validationf("unknown payment state %q", in.State)
	}
	return nil
}

// RecordPayment stores a payment. A confirmed one is allocated right away
// and a receipt is returned and published; pending and rejected ones leave
// the ledger alone.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (*payments.Payment, *Receipt, error) {
	if err := s.checkPayment(&in); err != nil {
		return nil, nil, err
	}

	var (
		stored  *payments.Payment
		receipt *Receipt
	)
	err := s.withMember(ctx, in.MemberID, func(ctx context.Context, r Repos, m *members.Member, l *ledgers.Ledger) error {
		receipt = nil
		if in.RecordedBy != nil {
			admin, err := r.Members.Get(ctx, *in.RecordedBy)
			if err != nil {
				return err
			}
			if admin == nil || admin.Role != members.RoleAdmin {
				return validationf("payments can only be recorded by an admin")
			}
		}
		p, err := r.Payments.Create(ctx, payments.Payment{
			MemberID:   in.MemberID,
			Amount:     in.Amount,
			PaidOn:     in.PaidOn,
			Method:     in.Method,
			State:      in.State,
			Concept:    in.Concept,
			Memo:       in.Memo,
			ReceiptID:  in.ReceiptID,
			RecordedBy: in.RecordedBy,
		})
		if err != nil {
			return err
		}
		stored = p
		if p.State != payments.StateConfirmed {
			return nil
		}
		receipt, err = s.allocate(ctx, r, m, l, *p)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.InfoContext(ctx, "payment recorded", "member_id", in.MemberID, "payment_id", stored.ID,
		"amount", stored.Amount.String(), "state", stored.State, "method", stored.Method)
	s.afterAllocation(ctx, receipt)
	return stored, receipt, nil
}

// allocate walks open debts oldest month first, then rebuilds the ledger.
// It is the only code that lowers a debt's remaining amount.
// applyOldestFirst spreads amount over the member's open debts, oldest month
// first, and returns what is left over.
func applyOldestFirst(ctx context.Context, r Repos, memberID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	open, err := r.Debts.ListOpen(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	left := amount
	for i := range open {
		if !left.IsPositive() {
			break
		}
		left = left.Sub(open[i].ApplyPayment(left))
		if err := r.Debts.Save(ctx, open[i]); err != nil {
			return decimal.Zero, err
		}
	}
	return left, nil
}

func (s *Service) allocate(ctx context.Context, r Repos, m *members.Member, l *ledgers.Ledger, p payments.Payment) (*Receipt, error) {
	previous := l.Balance

	if _, err := applyOldestFirst(ctx, r, l.MemberID, p.Amount); err != nil {
		return nil, err
	}

	paidOn, amount := p.PaidOn, p.Amount
	l.LastPaymentDate = &paidOn
	l.LastPaymentAmount = &amount
	if _, err := s.autoAssignPlan(ctx, r, l); err != nil {
		return nil, err
	}
	if err := s.recomputeLedger(ctx, r, l); err != nil {
		return nil, err
	}

	rc := &Receipt{
		MemberID:        m.ID,
		MemberName:      m.DisplayName(),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		PaidOn:          p.PaidOn,
		PreviousBalance: previous,
		NewBalance:      l.Balance,
		PlanID:          l.CurrentPlanID,
		ReceiptNumber:   p.ReceiptID,
	}
	if rc.ReceiptNumber == "" {
		rc.ReceiptNumber = fmt.Sprintf("R-%08d", p.ID)
	}
	if l.CurrentPlanID != nil {
		plan, err := r.Plans.Get(ctx, *l.CurrentPlanID)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			rc.PlanName = plan.Name
		}
	}
	return rc, nil
}

func (s *Service) afterAllocation(ctx context.Context, rc *Receipt) {
	if rc == nil {
		return
	}
	metrics.PaymentsAllocated.Inc()
	metrics.PaymentAmountAllocated.Add(metrics.Amount(rc.Amount))
	s.notifyReceipt(ctx, rc)
}

func (s *Service) paymentOwner(ctx context.Context, id int64) (int64, error) {
	var memberID int64
	err := s.read(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Payments.Get(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundf("payment %d", id)
		}
		memberID = p.MemberID
		return nil
	})
	return memberID, err
}

// settlePending moves a pending payment to state inside the member transaction.
func (s *Service) settlePending(ctx context.Context, id int64, state payments.State) (*payments.Payment, *Receipt, error) {
	memberID, err := s.paymentOwner(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var (
		out     *payments.Payment
		receipt *Receipt
	)
	err = s.withMember(ctx, memberID, func(ctx context.Context, r Repos, m *members.Member, l *ledgers.Ledger) error {
		receipt = nil
		p, err := r.Payments.Get(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundf("payment %d", id)
		}
		if p.State != payments.StatePending {
			return fmt.Errorf("%w: payment %d is already %s", ErrConflict, id, p.State)
		}
		if err := r.Payments.SetState(ctx, id, state); err != nil {
			return err
		}
		p.State = state
		out = p
		if state != payments.StateConfirmed {
			return nil
		}
		receipt, err = s.allocate(ctx, r, m, l, *p)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.InfoContext(ctx, "pending payment settled", "payment_id", id, "member_id", memberID, "state", state)
	s.afterAllocation(ctx, receipt)
	return out, receipt, nil
}

func (s *Service) ConfirmPayment(ctx context.Context, id int64) (*payments.Payment, *Receipt, error) {
	return s.settlePending(ctx, id, payments.StateConfirmed)
}

func (s *Service) RejectPayment(ctx context.Context, id int64) (*payments.Payment, error) {
	p, _, err := s.settlePending(ctx, id, payments.StateRejected)
	return p, err
}
