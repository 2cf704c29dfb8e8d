package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: входные данные нарушают инвариант, ничего не записано.
	ErrValidation = errors.New("validation failed")
	// ErrConflict: дубликат долга за месяц, недельной ёмкости плана или брони на слот.
	ErrConflict = errors.New("conflict")
	// ErrNotEligible: отказ гарда (ёмкость, просрочка), не системная ошибка.
	ErrNotEligible = errors.New("not eligible")
	// ErrIntegrity: транзакция не закоммитилась из-за конкурентного изменения.
	ErrIntegrity = errors.New("integrity failure")
	ErrNotFound  = errors.New("not found")

	ErrPlanReferenced = fmt.Errorf("%w: plan is still referenced", ErrConflict)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// DenialCode is a stable, machine-readable guard outcome.
type DenialCode string

const (
	DenyNoPlan    DenialCode = "no_plan"
	DenyCapacity  DenialCode = "capacity"
	DenySameSlot  DenialCode = "same_slot"
	DenyDuplicate DenialCode = "duplicate"
	DenyOverdue   DenialCode = "overdue"
	DenyNotice    DenialCode = "notice"
)

// DenialError carries the reason shown to the member.
type DenialError struct {
	Code   DenialCode
	Reason string
}

func (e *DenialError) Error() string { return "reservation denied: " + e.Reason }

// Is makes a duplicate booking a conflict and every other denial ErrNotEligible.
func (e *DenialError) Is(target error) bool {
	if e.Code == DenyDuplicate {
		return target == ErrConflict
	}
	return target == ErrNotEligible
}
