package billing

import (
	"context"
	"time"

	"github.com/Spok95/studio-billing/internal/domain/assignments"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
)

type AssignInput struct {
	MemberID  int64
	PlanID    int64
	Start     time.Time
	End       time.Time
	Mode      assignments.Mode
	Notes     string
	CreatedBy *int64
}

func (s *Service) Assign(ctx context.Context, in AssignInput) (*assignments.Assignment, error) {
	if in.Mode == "" {
		in.Mode = assignments.ModeAutoRenew
	}
	if in.Mode != assignments.ModeAutoRenew && in.Mode != assignments.ModeOneOff {
		return nil, validationf("unknown renewal mode %q", in.Mode)
	}
	start, end := civil(in.Start), civil(in.End)
	if !end.After(start) {
		return nil, validationf("assignment must end after it starts")
	}

	var out *assignments.Assignment
	err := s.withMember(ctx, in.MemberID, func(ctx context.Context, r Repos, _ *members.Member, _ *ledgers.Ledger) error {
		p, err := r.Plans.Get(ctx, in.PlanID)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundf("plan %d", in.PlanID)
		}
		if !p.Active {
			return validationf("plan %q is not active", p.Name)
		}
		out, err = r.Assignments.Create(ctx, assignments.Assignment{
			MemberID:  in.MemberID,
			PlanID:    in.PlanID,
			StartDate: start,
			EndDate:   end,
			Active:    true,
			Mode:      in.Mode,
			Notes:     in.Notes,
			CreatedBy: in.CreatedBy,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "plan assigned", "member_id", in.MemberID, "plan_id", in.PlanID, "assignment_id", out.ID)
	return out, nil
}

// changeAssignment loads the assignment, locks its member and applies fn.
func (s *Service) changeAssignment(ctx context.Context, id int64, fn func(a *assignments.Assignment) error) (*assignments.Assignment, error) {
	var memberID int64
	if err := s.read(ctx, func(ctx context.Context, r Repos) error {
		a, err := r.Assignments.Get(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return notFoundf("assignment %d", id)
		}
		memberID = a.MemberID
		return nil
	}); err != nil {
		return nil, err
	}

	var out *assignments.Assignment
	err := s.withMember(ctx, memberID, func(ctx context.Context, r Repos, _ *members.Member, _ *ledgers.Ledger) error {
		a, err := r.Assignments.Get(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return notFoundf("assignment %d", id)
		}
		if err := fn(a); err != nil {
			return err
		}
		if err := r.Assignments.Update(ctx, *a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// CancelAssignment deactivates the assignment. Debts already generated stay as they are.
func (s *Service) CancelAssignment(ctx context.Context, id int64) (*assignments.Assignment, error) {
	return s.changeAssignment(ctx, id, func(a *assignments.Assignment) error {
		a.Active = false
		return nil
	})
}

func (s *Service) RenewAssignment(ctx context.Context, id int64) (*assignments.Assignment, error) {
	return s.changeAssignment(ctx, id, s.renew)
}

func (s *Service) renew(a *assignments.Assignment) error {
	if a.Mode != assignments.ModeAutoRenew {
		return validationf("assignment %d is not auto-renewing", a.ID)
	}
	if !a.Active {
		return validationf("assignment %d is cancelled", a.ID)
	}
	a.EndDate = a.EndDate.AddDate(0, 0, s.billing.RenewalDays)
	return nil
}

// TotalCapacity sums weekly classes over the member's active assignments
// covering weekStart; 0 when none do.
func (s *Service) TotalCapacity(ctx context.Context, memberID int64, weekStart time.Time) (int, error) {
	var n int
	err := s.read(ctx, func(ctx context.Context, r Repos) error {
		var err error
		n, err = r.Assignments.CapacityAt(ctx, memberID, civil(weekStart))
		return err
	})
	return n, err
}

func (s *Service) ListAssignments(ctx context.Context, memberID int64) ([]assignments.Assignment, error) {
	var out []assignments.Assignment
	err := s.read(ctx, func(ctx context.Context, r Repos) error {
		var err error
		out, err = r.Assignments.ListByMember(ctx, memberID)
		return err
	})
	return out, err
}

type RenewReport struct {
	Day     time.Time
	Renewed int
	Errors  int
}

// RenewAssignments extends every active auto-renewing assignment that ended before today.
func (s *Service) RenewAssignments(ctx context.Context, today time.Time) (RenewReport, error) {
	if today.IsZero() {
		today = s.today()
	}
	rep := RenewReport{Day: civil(today)}

	var due []assignments.Assignment
	if err := s.read(ctx, func(ctx context.Context, r Repos) error {
		var err error
		due, err = r.Assignments.ListDueForRenewal(ctx, rep.Day)
		return err
	}); err != nil {
		return rep, err
	}

	for _, a := range due {
		if _, err := s.RenewAssignment(ctx, a.ID); err != nil {
			rep.Errors++
			s.log.ErrorContext(ctx, "assignment renewal failed", "assignment_id", a.ID, "member_id", a.MemberID, "err", err)
			continue
		}
		rep.Renewed++
	}
	s.log.InfoContext(ctx, "assignments renewed", "day", rep.Day.Format(time.DateOnly), "renewed", rep.Renewed, "errors", rep.Errors)
	return rep, nil
}
