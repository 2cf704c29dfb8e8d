package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
	"github.com/Spok95/studio-billing/internal/domain/plans"
	"github.com/Spok95/studio-billing/internal/infra/metrics"
)

type Outcome string

const (
	OutcomeGenerated   Outcome = "generated"
	OutcomeRegenerated Outcome = "regenerated"
	OutcomeExists      Outcome = "already exists"
	OutcomeFailed      Outcome = "failed"
)

type generated struct {
	Debt    *debts.Debt
	Plan    *plans.Plan
	Outcome Outcome
}

// generateForMonth creates the member's debt for month. An existing debt is
// returned untouched unless force is set; then it is replaced and whatever
// was already paid on it is carried over. The caller recomputes the ledger.
func (s *Service) generateForMonth(ctx context.Context, r Repos, l *ledgers.Ledger, month time.Time, force bool) (generated, error) {
	existing, err := r.Debts.GetByMonth(ctx, l.MemberID, month)
	if err != nil {
		return generated{}, err
	}
	if existing != nil && !force {
		return generated{Debt: existing, Outcome: OutcomeExists}, nil
	}
	if l.CurrentPlanID == nil {
		return generated{}, validationf("member %d has no current plan", l.MemberID)
	}
	plan, err := r.Plans.Get(ctx, *l.CurrentPlanID)
	if err != nil {
		return generated{}, err
	}
	if plan == nil {
		return generated{}, notFoundf("plan %d", *l.CurrentPlanID)
	}

	previous, err := r.Debts.CountByMember(ctx, l.MemberID)
	if err != nil {
		return generated{}, err
	}
	if existing != nil {
		previous--
	}

	today := s.today()
	d := debts.Debt{
		MemberID: l.MemberID,
		Month:    month,
		PlanID:   plan.ID,
		Original: plan.MonthlyPrice,
		State:    debts.StatePending,
		DueBy:    s.dueDate(month),
	}
	// первый долг, выставленный во второй половине текущего месяца, — половина цены
	if previous == 0 && month.Equal(monthStart(today)) && today.Day() > s.billing.HalfMonthAfterDay {
		d.Original = plan.MonthlyPrice.Div(decimal.NewFromInt(2)).Round(2)
		d.HalfMonth = true
	}
	d.Remaining = d.Original

	out := generated{Plan: plan, Outcome: OutcomeGenerated}
	excess := decimal.Zero
	if existing != nil {
		paid := existing.Original.Sub(existing.Remaining)
		if err := r.Debts.Delete(ctx, existing.ID); err != nil {
			return generated{}, err
		}
		carried := d.ApplyPayment(paid)
		excess = paid.Sub(carried)
		d.Notes = fmt.Sprintf("regenerated, %s carried over", carried.StringFixed(2))
		if excess.IsPositive() {
			d.Notes += fmt.Sprintf(", %s excess", excess.StringFixed(2))
		}
		out.Outcome = OutcomeRegenerated
	}

	created, err := r.Debts.Create(ctx, d)
	if errors.Is(err, debts.ErrDuplicateMonth) {
		return generated{}, fmt.Errorf("%w: debt for %s already exists", ErrConflict, month.Format("2006-01"))
	}
	if err != nil {
		return generated{}, err
	}
	out.Debt = created

	// переплата по заменённому долгу гасит остальные открытые долги, остаток остаётся кредитом
	if excess.IsPositive() {
		if _, err := applyOldestFirst(ctx, r, l.MemberID, excess); err != nil {
			return generated{}, err
		}
	}

	l.CurrentMonthOwed = created.Remaining
	due := created.DueBy
	l.PaymentDueBy = &due
	if l.LastBilledMonth == nil || month.After(*l.LastBilledMonth) {
		m := month
		l.LastBilledMonth = &m
	}
	if created.PastDue(today) {
		l.CanReserve = false
	}
	return out, nil
}

func observeDebt(g generated) {
	if g.Debt == nil || g.Outcome == OutcomeExists {
		return
	}
	kind := "full"
	switch {
	case g.Outcome == OutcomeRegenerated:
		kind = "regenerated"
	case g.Debt.HalfMonth:
		kind = "half_month"
	}
	metrics.DebtsGenerated.WithLabelValues(kind).Inc()
	metrics.DebtAmountGenerated.Add(metrics.Amount(g.Debt.Original))
}

// GenerateForCurrentMonth is idempotent per member and month.
func (s *Service) GenerateForCurrentMonth(ctx context.Context, memberID int64) (*debts.Debt, error) {
	return s.RegenerateDebt(ctx, memberID, s.today(), false)
}

// RegenerateDebt generates the member's debt for month; with force an
// existing debt is replaced.
func (s *Service) RegenerateDebt(ctx context.Context, memberID int64, month time.Time, force bool) (*debts.Debt, error) {
	month = monthStart(month)
	var g generated
	err := s.withMember(ctx, memberID, func(ctx context.Context, r Repos, _ *members.Member, l *ledgers.Ledger) error {
		var err error
		if g, err = s.generateForMonth(ctx, r, l, month, force); err != nil {
			return err
		}
		if g.Outcome == OutcomeExists {
			return nil
		}
		return s.recomputeLedger(ctx, r, l)
	})
	if err != nil {
		return nil, err
	}
	observeDebt(g)
	if g.Outcome != OutcomeExists {
		s.log.InfoContext(ctx, "debt generated", "member_id", memberID, "month", month.Format("2006-01"),
			"amount", g.Debt.Original.String(), "half_month", g.Debt.HalfMonth, "outcome", g.Outcome)
	}
	return g.Debt, nil
}

type GenerateOptions struct {
	Force  bool
	DryRun bool
}

type ReportLine struct {
	MemberID  int64
	Username  string
	PlanName  string
	Amount    decimal.Decimal
	HalfMonth bool
	Outcome   Outcome
	Error     string
}

type GenerateReport struct {
	Month       time.Time
	DryRun      bool
	Generated   int
	Skipped     int
	Errors      int
	TotalAmount decimal.Decimal
	Lines       []ReportLine
}

// GenerateForAllActiveMembers bills every active ledger with a plan for
// month. Each member runs in its own transaction; failures are counted and
// the batch goes on.
func (s *Service) GenerateForAllActiveMembers(ctx context.Context, month time.Time, opts GenerateOptions) (GenerateReport, error) {
	if month.IsZero() {
		month = s.today()
	}
	rep := GenerateReport{Month: monthStart(month), DryRun: opts.DryRun}

	var billable []ledgers.Ledger
	if err := s.read(ctx, func(ctx context.Context, r Repos) error {
		var err error
		billable, err = r.Ledgers.ListBillable(ctx)
		return err
	}); err != nil {
		return rep, err
	}

	for _, bl := range billable {
		line := ReportLine{MemberID: bl.MemberID}
		var g generated
		err := s.withMember(ctx, bl.MemberID, func(ctx context.Context, r Repos, m *members.Member, l *ledgers.Ledger) error {
			line.Username = m.Username
			var err error
			if g, err = s.generateForMonth(ctx, r, l, rep.Month, opts.Force); err != nil {
				return err
			}
			if g.Outcome != OutcomeExists {
				if err := s.recomputeLedger(ctx, r, l); err != nil {
					return err
				}
			}
			if opts.DryRun {
				return errDryRun
			}
			return nil
		})
		if errors.Is(err, errDryRun) {
			err = nil
		}
		if err != nil {
			rep.Errors++
			line.Outcome = OutcomeFailed
			line.Error = err.Error()
			rep.Lines = append(rep.Lines, line)
			s.log.ErrorContext(ctx, "debt generation failed", "member_id", bl.MemberID, "month", rep.Month.Format("2006-01"), "err", err)
			continue
		}

		line.Outcome = g.Outcome
		line.Amount = g.Debt.Original
		line.HalfMonth = g.Debt.HalfMonth
		if g.Plan != nil {
			line.PlanName = g.Plan.Name
		}
		rep.Lines = append(rep.Lines, line)
		if g.Outcome == OutcomeExists {
			rep.Skipped++
			continue
		}
		rep.Generated++
		rep.TotalAmount = rep.TotalAmount.Add(g.Debt.Original)
		if !opts.DryRun {
			observeDebt(g)
		}
	}

	s.log.InfoContext(ctx, "monthly dues generated",
		"month", rep.Month.Format("2006-01"),
		"dry_run", rep.DryRun,
		"generated", rep.Generated,
		"skipped", rep.Skipped,
		"errors", rep.Errors,
		"total", rep.TotalAmount.StringFixed(2),
	)
	return rep, nil
}

type OverdueReport struct {
	Day             time.Time
	DryRun          bool
	DebtsMarked     int
	MembersLocked   int
	MembersUnlocked int
	Errors          int
	TotalOverdue    decimal.Decimal
	Notices         []OverdueNotice
}

// MarkOverdueAndLock marks past-due pending and partial debts overdue and
// locks their members, then unlocks every member with nothing overdue left.
func (s *Service) MarkOverdueAndLock(ctx context.Context, today time.Time, dryRun bool) (OverdueReport, error) {
	if today.IsZero() {
		today = s.today()
	}
	rep := OverdueReport{Day: civil(today), DryRun: dryRun}

	var pastDue []debts.Debt
	if err := s.read(ctx, func(ctx context.Context, r Repos) error {
		var err error
		pastDue, err = r.Debts.ListPastDue(ctx, rep.Day)
		return err
	}); err != nil {
		return rep, err
	}

	for _, memberID := range memberIDs(pastDue) {
		var (
			marked int
			locked bool
			notice OverdueNotice
		)
		err := s.withMember(ctx, memberID, func(ctx context.Context, r Repos, m *members.Member, l *ledgers.Ledger) error {
			marked, locked = 0, false
			open, err := r.Debts.ListOpen(ctx, memberID)
			if err != nil {
				return err
			}
			for _, d := range open {
				if d.State == debts.StateOverdue || !d.DueBy.Before(rep.Day) {
					continue
				}
				d.State = debts.StateOverdue
				if err := r.Debts.Save(ctx, d); err != nil {
					return err
				}
				marked++
			}
			if marked == 0 {
				return nil
			}
			if l.CanReserve {
				l.CanReserve = false
				locked = true
				if err := r.Ledgers.Save(ctx, *l); err != nil {
					return err
				}
			}
			n, sum, err := r.Debts.OverdueSummary(ctx, memberID)
			if err != nil {
				return err
			}
			notice = OverdueNotice{MemberID: memberID, MemberName: m.DisplayName(), AmountOverdue: sum, MonthsOverdue: n}
			if dryRun {
				return errDryRun
			}
			return nil
		})
		if errors.Is(err, errDryRun) {
			err = nil
		}
		if err != nil {
			rep.Errors++
			s.log.ErrorContext(ctx, "overdue marking failed", "member_id", memberID, "err", err)
			continue
		}
		if marked == 0 {
			continue
		}
		rep.DebtsMarked += marked
		if locked {
			rep.MembersLocked++
		}
		rep.TotalOverdue = rep.TotalOverdue.Add(notice.AmountOverdue)
		rep.Notices = append(rep.Notices, notice)
	}

	if err := s.unlockCaughtUp(ctx, &rep); err != nil {
		return rep, err
	}

	if !dryRun {
		for _, n := range rep.Notices {
			if err := s.notifier.DebtOverdue(ctx, n); err != nil {
				s.log.ErrorContext(ctx, "overdue notification failed", "member_id", n.MemberID, "err", err)
			}
		}
	}

	s.log.InfoContext(ctx, "overdue pass finished",
		"day", rep.Day.Format(time.DateOnly),
		"dry_run", rep.DryRun,
		"debts_marked", rep.DebtsMarked,
		"members_locked", rep.MembersLocked,
		"members_unlocked", rep.MembersUnlocked,
		"errors", rep.Errors,
		"total_overdue", rep.TotalOverdue.StringFixed(2),
	)
	return rep, nil
}

// unlockCaughtUp lets locked members reserve again once no overdue debt has
// anything left. Only the can-reserve flag is written.
func (s *Service) unlockCaughtUp(ctx context.Context, rep *OverdueReport) error {
	var locked []ledgers.Ledger
	if err := s.read(ctx, func(ctx context.Context, r Repos) error {
		var err error
		locked, err = r.Ledgers.ListLocked(ctx)
		return err
	}); err != nil {
		return err
	}

	for _, ll := range locked {
		var unlocked bool
		err := s.withMember(ctx, ll.MemberID, func(ctx context.Context, r Repos, _ *members.Member, l *ledgers.Ledger) error {
			unlocked = false
			if l.CanReserve {
				return nil
			}
			n, _, err := r.Debts.OverdueSummary(ctx, l.MemberID)
			if err != nil {
				return err
			}
			if n > 0 {
				return nil
			}
			l.CanReserve = true
			if err := r.Ledgers.Save(ctx, *l); err != nil {
				return err
			}
			unlocked = true
			if rep.DryRun {
				return errDryRun
			}
			return nil
		})
		if errors.Is(err, errDryRun) {
			err = nil
		}
		if err != nil {
			rep.Errors++
			s.log.ErrorContext(ctx, "unlock failed", "member_id", ll.MemberID, "err", err)
			continue
		}
		if unlocked {
			rep.MembersUnlocked++
			s.log.InfoContext(ctx, "member unlocked", "member_id", ll.MemberID)
		}
	}
	return nil
}

func memberIDs(ds []debts.Debt) []int64 {
	seen := make(map[int64]struct{}, len(ds))
	out := make([]int64, 0, len(ds))
	for _, d := range ds {
		if _, ok := seen[d.MemberID]; ok {
			continue
		}
		seen[d.MemberID] = struct{}{}
		out = append(out, d.MemberID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
