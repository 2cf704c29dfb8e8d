package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
	"github.com/Spok95/studio-billing/internal/domain/payments"
	"github.com/Spok95/studio-billing/internal/domain/plans"
)

type LedgerView struct {
	Member   members.Member
	Ledger   ledgers.Ledger
	Plan     *plans.Plan
	Debts    []debts.Debt
	Payments []payments.Payment
}

// GetLedger reads the member's account from one snapshot. A member without a
// ledger yet gets the defaults of a new one.
func (s *Service) GetLedger(ctx context.Context, memberID int64) (*LedgerView, error) {
	var v LedgerView
	err := s.read(ctx, func(ctx context.Context, r Repos) error {
		m, err := r.Members.Get(ctx, memberID)
		if err != nil {
			return err
		}
		if m == nil {
			return notFoundf("member %d", memberID)
		}
		v.Member = *m

		l, err := r.Ledgers.Get(ctx, memberID)
		if err != nil {
			return err
		}
		if l == nil {
			v.Ledger = ledgers.New(memberID)
		} else {
			v.Ledger = *l
		}
		if v.Ledger.CurrentPlanID != nil {
			if v.Plan, err = r.Plans.Get(ctx, *v.Ledger.CurrentPlanID); err != nil {
				return err
			}
		}
		if v.Debts, err = r.Debts.ListByMember(ctx, memberID); err != nil {
			return err
		}
		v.Payments, err = r.Payments.ListByMember(ctx, memberID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// RecomputeBalance rebuilds the balance from history. Running it again changes nothing.
func (s *Service) RecomputeBalance(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := s.withMember(ctx, memberID, func(ctx context.Context, r Repos, _ *members.Member, l *ledgers.Ledger) error {
		if err := s.recomputeLedger(ctx, r, l); err != nil {
			return err
		}
		out = l.Balance
		return nil
	})
	return out, err
}

// LedgerEdit is a manual admin override. Nil fields are left as they are.
type LedgerEdit struct {
	PlanID    *int64
	ClearPlan bool
	Balance   *decimal.Decimal
	Notes     *string
	Active    *bool
}

// EditLedger applies the override as is; the next recompute replaces a
// balance override with the derived value.
func (s *Service) EditLedger(ctx context.Context, memberID int64, e LedgerEdit) (*ledgers.Ledger, error) {
	if e.PlanID != nil && e.ClearPlan {
		return nil, validationf("plan_id and clear_plan are mutually exclusive")
	}
	var out *ledgers.Ledger
	err := s.withMember(ctx, memberID, func(ctx context.Context, r Repos, _ *members.Member, l *ledgers.Ledger) error {
		switch {
		case e.ClearPlan:
			l.CurrentPlanID = nil
		case e.PlanID != nil:
			p, err := r.Plans.Get(ctx, *e.PlanID)
			if err != nil {
				return err
			}
			if p == nil {
				return notFoundf("plan %d", *e.PlanID)
			}
			id := p.ID
			l.CurrentPlanID = &id
		}
		if e.Balance != nil {
			l.Balance = *e.Balance
		}
		if e.Notes != nil {
			l.Notes = *e.Notes
		}
		if e.Active != nil {
			l.Active = *e.Active
		}
		if err := r.Ledgers.Save(ctx, *l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "ledger edited", "member_id", memberID)
	return out, nil
}
