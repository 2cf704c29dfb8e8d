package plans

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindWeekly   Kind = "weekly"
	KindPerClass Kind = "per_class"
)

// ErrDuplicateCapacity: уже есть активный недельный план с таким числом занятий.
var ErrDuplicateCapacity = errors.New("plans: duplicate active weekly capacity")

type Plan struct {
	ID             int64
	Name           string
	Description    string
	Kind           Kind
	ClassesPerWeek int
	MonthlyPrice   decimal.Decimal
	PerClassPrice  *decimal.Decimal
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the pricing shape of a plan. Uniqueness of the weekly
// capacity is a store concern and is not checked here.
func (p Plan) Validate() error {
	if p.MonthlyPrice.LessThanOrEqual(decimal.Zero) {
		return errors.New("monthly price must be greater than zero")
	}
	switch p.Kind {
	case KindWeekly:
		if p.ClassesPerWeek < 1 {
			return errors.New("weekly plans need at least one class per week")
		}
		if p.PerClassPrice != nil {
			return errors.New("weekly plans must not have a per-class price")
		}
	case KindPerClass:
		if p.PerClassPrice == nil || p.PerClassPrice.LessThanOrEqual(decimal.Zero) {
			return errors.New("per-class plans must have a positive per-class price")
		}
		if p.ClassesPerWeek != 0 {
			return errors.New("per-class plans must not have a weekly class limit")
		}
	default:
		return errors.New("unknown plan kind")
	}
	return nil
}

// Capacity is the number of weekly classes the plan entitles to; 0 for per-class plans.
func (p Plan) Capacity() int {
	if p.Kind != KindWeekly {
		return 0
	}
	return p.ClassesPerWeek
}
