package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/domain/plans"
)

type PlanInput struct {
	Name           string
	Description    string
	Kind           plans.Kind
	ClassesPerWeek int
	MonthlyPrice   decimal.Decimal
	PerClassPrice  *decimal.Decimal
	Active         bool
}

func (in PlanInput) apply(p *plans.Plan) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Kind = in.Kind
	p.ClassesPerWeek = in.ClassesPerWeek
	p.MonthlyPrice = in.MonthlyPrice
	p.PerClassPrice = in.PerClassPrice
	p.Active = in.Active
}

// checkPlan validates shape and, for an active weekly plan, that no other
// active weekly plan has the same capacity.
func checkPlan(ctx context.Context, r Repos, p plans.Plan) error {
	if p.Name == "" {
		return validationf("plan name is required")
	}
	if err := p.Validate(); err != nil {
		return validationf("%v", err)
	}
	if !p.Active || p.Kind != plans.KindWeekly {
		return nil
	}
	taken, err := r.Plans.ActiveWeeklyConflict(ctx, p.ClassesPerWeek, p.ID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: an active weekly plan with %d classes per week already exists", ErrConflict, p.ClassesPerWeek)
	}
	return nil
}

func mapPlanErr(err error) error {
	if errors.Is(err, plans.ErrDuplicateCapacity) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*plans.Plan, error) {
	var out *plans.Plan
	err := s.write(ctx, func(ctx context.Context, r Repos) error {
		var p plans.Plan
		in.apply(&p)
		if err := checkPlan(ctx, r, p); err != nil {
			return err
		}
		created, err := r.Plans.Create(ctx, p)
		if err != nil {
			return mapPlanErr(err)
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "plan created", "plan_id", out.ID, "name", out.Name, "kind", out.Kind)
	return out, nil
}

func (s *Service) UpdatePlan(ctx context.Context, id int64, in PlanInput) (*plans.Plan, error) {
	var out *plans.Plan
	err := s.write(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Plans.Get(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundf("plan %d", id)
		}
		in.apply(p)
		if err := checkPlan(ctx, r, *p); err != nil {
			return err
		}
		updated, err := r.Plans.Update(ctx, *p)
		if err != nil {
			return mapPlanErr(err)
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeactivatePlan hides the plan from auto-assignment; existing ledgers keep it.
func (s *Service) DeactivatePlan(ctx context.Context, id int64) (*plans.Plan, error) {
	var out *plans.Plan
	err := s.write(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Plans.Get(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundf("plan %d", id)
		}
		p.Active = false
		out, err = r.Plans.Update(ctx, *p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeletePlan(ctx context.Context, id int64) error {
	return s.write(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Plans.Get(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundf("plan %d", id)
		}
		refs, err := r.Plans.CountReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: plan %d has %d references", ErrPlanReferenced, id, refs)
		}
		return r.Plans.Delete(ctx, id)
	})
}

func (s *Service) GetPlan(ctx context.Context, id int64) (*plans.Plan, error) {
	var out *plans.Plan
	err := s.read(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Plans.Get(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFoundf("plan %d", id)
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Service) ListPlans(ctx context.Context, onlyActive bool) ([]plans.Plan, error) {
	var out []plans.Plan
	err := s.read(ctx, func(ctx context.Context, r Repos) error {
		var err error
		out, err = r.Plans.List(ctx, onlyActive)
		return err
	})
	return out, err
}
