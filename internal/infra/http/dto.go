package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/billing"
	"github.com/Spok95/studio-billing/internal/domain/assignments"
	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/payments"
	"github.com/Spok95/studio-billing/internal/domain/plans"
	"github.com/Spok95/studio-billing/internal/domain/reservations"
)

const monthLayout = "2006-01"

func dateOrNil(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

// ---- requests ----

type reservationRequest struct {
	SlotID int64 `json:"slot_id" validate:"required,gt=0"`
}

type planRequest struct {
	Name           string           `json:"name" validate:"required,max=100"`
	Description    string           `json:"description"`
	Kind           string           `json:"kind" validate:"required,oneof=weekly per_class"`
	ClassesPerWeek int              `json:"classes_per_week" validate:"gte=0,lte=14"`
	MonthlyPrice   decimal.Decimal  `json:"monthly_price"`
	PerClassPrice  *decimal.Decimal `json:"per_class_price"`
	Active         *bool            `json:"active"`
}

func (p planRequest) input() billing.PlanInput {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return billing.PlanInput{
		Name:           p.Name,
		Description:    p.Description,
		Kind:           plans.Kind(p.Kind),
		ClassesPerWeek: p.ClassesPerWeek,
		MonthlyPrice:   p.MonthlyPrice,
		PerClassPrice:  p.PerClassPrice,
		Active:         active,
	}
}

type assignRequest struct {
	PlanID    int64  `json:"plan_id" validate:"required,gt=0"`
	Start     string `json:"start_date" validate:"required,datetime=2006-01-02"`
	End       string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Mode      string `json:"mode" validate:"omitempty,oneof=auto_renew one_off"`
	Notes     string `json:"notes"`
	CreatedBy *int64 `json:"created_by"`
}

type ledgerEditRequest struct {
	PlanID    *int64           `json:"plan_id" validate:"omitempty,gt=0"`
	ClearPlan bool             `json:"clear_plan"`
	Balance   *decimal.Decimal `json:"balance"`
	Notes     *string          `json:"notes"`
	Active    *bool            `json:"active"`
}

type regenerateRequest struct {
	Month string `json:"month" validate:"required,datetime=2006-01"`
	Force bool   `json:"force"`
}

type generateDuesRequest struct {
	Month  string `json:"month" validate:"omitempty,datetime=2006-01"`
	Force  bool   `json:"force"`
	DryRun bool   `json:"dry_run"`
}

type markOverdueRequest struct {
	Day    string `json:"day" validate:"omitempty,datetime=2006-01-02"`
	DryRun bool   `json:"dry_run"`
}

// ---- responses ----

type PlanJSON struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Kind           string           `json:"kind"`
	ClassesPerWeek int              `json:"classes_per_week"`
	MonthlyPrice   decimal.Decimal  `json:"monthly_price"`
	PerClassPrice  *decimal.Decimal `json:"per_class_price,omitempty"`
	Active         bool             `json:"active"`
}

func planJSON(p plans.Plan) PlanJSON {
	return PlanJSON{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Kind:           string(p.Kind),
		ClassesPerWeek: p.ClassesPerWeek,
		MonthlyPrice:   p.MonthlyPrice,
		PerClassPrice:  p.PerClassPrice,
		Active:         p.Active,
	}
}

type AssignmentJSON struct {
	ID        int64  `json:"id"`
	MemberID  int64  `json:"member_id"`
	PlanID    int64  `json:"plan_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Active    bool   `json:"active"`
	Mode      string `json:"mode"`
	Notes     string `json:"notes,omitempty"`
}

func assignmentJSON(a assignments.Assignment) AssignmentJSON {
	return AssignmentJSON{
		ID:        a.ID,
		MemberID:  a.MemberID,
		PlanID:    a.PlanID,
		StartDate: a.StartDate.Format(time.DateOnly),
		EndDate:   a.EndDate.Format(time.DateOnly),
		Active:    a.Active,
		Mode:      string(a.Mode),
		Notes:     a.Notes,
	}
}

type LedgerJSON struct {
	MemberID          int64            `json:"member_id"`
	CurrentPlanID     *int64           `json:"current_plan_id"`
	Balance           decimal.Decimal  `json:"balance"`
	CurrentMonthOwed  decimal.Decimal  `json:"current_month_owed"`
	LastPaymentDate   *string          `json:"last_payment_date"`
	LastPaymentAmount *decimal.Decimal `json:"last_payment_amount"`
	LastBilledMonth   *string          `json:"last_billed_month"`
	PaymentDueBy      *string          `json:"payment_due_by"`
	CanReserve        bool             `json:"can_reserve"`
	Active            bool             `json:"active"`
	Notes             string           `json:"notes,omitempty"`
}

func ledgerJSON(l ledgers.Ledger) LedgerJSON {
	out := LedgerJSON{
		MemberID:          l.MemberID,
		CurrentPlanID:     l.CurrentPlanID,
		Balance:           l.Balance,
		CurrentMonthOwed:  l.CurrentMonthOwed,
		LastPaymentDate:   dateOrNil(l.LastPaymentDate),
		LastPaymentAmount: l.LastPaymentAmount,
		PaymentDueBy:      dateOrNil(l.PaymentDueBy),
		CanReserve:        l.CanReserve,
		Active:            l.Active,
		Notes:             l.Notes,
	}
	if l.LastBilledMonth != nil {
		m := l.LastBilledMonth.Format(monthLayout)
		out.LastBilledMonth = &m
	}
	return out
}

type DebtJSON struct {
	ID        int64           `json:"id"`
	Month     string          `json:"month"`
	PlanID    int64           `json:"plan_id"`
	Original  decimal.Decimal `json:"original"`
	Remaining decimal.Decimal `json:"remaining"`
	HalfMonth bool            `json:"half_month"`
	State     string          `json:"state"`
	DueBy     string          `json:"due_by"`
	Notes     string          `json:"notes,omitempty"`
}

func debtJSON(d debts.Debt) DebtJSON {
	return DebtJSON{
		ID:        d.ID,
		Month:     d.Month.Format(monthLayout),
		PlanID:    d.PlanID,
		Original:  d.Original,
		Remaining: d.Remaining,
		HalfMonth: d.HalfMonth,
		State:     string(d.State),
		DueBy:     d.DueBy.Format(time.DateOnly),
		Notes:     d.Notes,
	}
}

type PaymentJSON struct {
	ID        int64           `json:"id"`
	MemberID  int64           `json:"member_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidOn    string          `json:"paid_on"`
	Method    string          `json:"method"`
	State     string          `json:"state"`
	Concept   string          `json:"concept,omitempty"`
	Memo      string          `json:"memo,omitempty"`
	ReceiptID string          `json:"receipt_id,omitempty"`
}

func NewPaymentJSON(p payments.Payment) PaymentJSON {
	return PaymentJSON{
		ID:        p.ID,
		MemberID:  p.MemberID,
		Amount:    p.Amount,
		PaidOn:    p.PaidOn.Format(time.DateOnly),
		Method:    string(p.Method),
		State:     string(p.State),
		Concept:   p.Concept,
		Memo:      p.Memo,
		ReceiptID: p.ReceiptID,
	}
}

type ReceiptJSON struct {
	ReceiptNumber   string          `json:"receipt_number"`
	PaymentID       int64           `json:"payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaidOn          string          `json:"paid_on"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	PlanID          *int64          `json:"plan_id"`
	PlanName        string          `json:"plan_name,omitempty"`
}

func NewReceiptJSON(r *billing.Receipt) *ReceiptJSON {
	if r == nil {
		return nil
	}
	return &ReceiptJSON{
		ReceiptNumber:   r.ReceiptNumber,
		PaymentID:       r.PaymentID,
		Amount:          r.Amount,
		PaidOn:          r.PaidOn.Format(time.DateOnly),
		PreviousBalance: r.PreviousBalance,
		NewBalance:      r.NewBalance,
		PlanID:          r.PlanID,
		PlanName:        r.PlanName,
	}
}

type ledgerViewJSON struct {
	MemberID   int64         `json:"member_id"`
	MemberName string        `json:"member_name"`
	Ledger     LedgerJSON    `json:"ledger"`
	Plan       *PlanJSON     `json:"plan"`
	Debts      []DebtJSON    `json:"debts"`
	Payments   []PaymentJSON `json:"payments"`
}

func ledgerViewFrom(v *billing.LedgerView) ledgerViewJSON {
	out := ledgerViewJSON{
		MemberID:   v.Member.ID,
		MemberName: v.Member.DisplayName(),
		Ledger:     ledgerJSON(v.Ledger),
		Debts:      make([]DebtJSON, 0, len(v.Debts)),
		Payments:   make([]PaymentJSON, 0, len(v.Payments)),
	}
	if v.Plan != nil {
		p := planJSON(*v.Plan)
		out.Plan = &p
	}
	for _, d := range v.Debts {
		out.Debts = append(out.Debts, debtJSON(d))
	}
	for _, p := range v.Payments {
		out.Payments = append(out.Payments, NewPaymentJSON(p))
	}
	return out
}

type reservationJSON struct {
	ID       int64  `json:"id"`
	Number   string `json:"number"`
	MemberID int64  `json:"member_id"`
	SlotID   int64  `json:"slot_id"`
	Weekday  string `json:"weekday"`
	StartsAt string `json:"starts_at"`
	Active   bool   `json:"active"`
}

func reservationFrom(r reservations.Reservation) reservationJSON {
	return reservationJSON{
		ID:       r.ID,
		Number:   r.Number,
		MemberID: r.MemberID,
		SlotID:   r.SlotID,
		Weekday:  r.Slot.Weekday.String(),
		StartsAt: r.Slot.StartsAt,
		Active:   r.Active,
	}
}

type decisionJSON struct {
	Allowed           bool   `json:"allowed"`
	Code              string `json:"code,omitempty"`
	Reason            string `json:"reason,omitempty"`
	RemainingThisWeek int    `json:"remaining_this_week"`
}

func decisionFrom(d billing.Decision) decisionJSON {
	return decisionJSON{
		Allowed:           d.Allowed,
		Code:              string(d.Code),
		Reason:            d.Reason,
		RemainingThisWeek: d.RemainingThisWeek,
	}
}

type reportLineJSON struct {
	MemberID  int64           `json:"member_id"`
	Username  string          `json:"username"`
	PlanName  string          `json:"plan_name"`
	Amount    decimal.Decimal `json:"amount"`
	HalfMonth bool            `json:"half_month"`
	Outcome   string          `json:"outcome"`
	Error     string          `json:"error,omitempty"`
}

type generateReportJSON struct {
	Month       string           `json:"month"`
	DryRun      bool             `json:"dry_run"`
	Generated   int              `json:"generated"`
	Skipped     int              `json:"skipped"`
	Errors      int              `json:"errors"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Lines       []reportLineJSON `json:"lines"`
}

func generateReportFrom(rep billing.GenerateReport) generateReportJSON {
	out := generateReportJSON{
		Month:       rep.Month.Format(monthLayout),
		DryRun:      rep.DryRun,
		Generated:   rep.Generated,
		Skipped:     rep.Skipped,
		Errors:      rep.Errors,
		TotalAmount: rep.TotalAmount,
		Lines:       make([]reportLineJSON, 0, len(rep.Lines)),
	}
	for _, l := range rep.Lines {
		out.Lines = append(out.Lines, reportLineJSON{
			MemberID:  l.MemberID,
			Username:  l.Username,
			PlanName:  l.PlanName,
			Amount:    l.Amount,
			HalfMonth: l.HalfMonth,
			Outcome:   string(l.Outcome),
			Error:     l.Error,
		})
	}
	return out
}

type overdueReportJSON struct {
	Day             string          `json:"day"`
	DryRun          bool            `json:"dry_run"`
	DebtsMarked     int             `json:"debts_marked"`
	MembersLocked   int             `json:"members_locked"`
	MembersUnlocked int             `json:"members_unlocked"`
	Errors          int             `json:"errors"`
	TotalOverdue    decimal.Decimal `json:"total_overdue"`
}

func overdueReportFrom(rep billing.OverdueReport) overdueReportJSON {
	return overdueReportJSON{
		Day:             rep.Day.Format(time.DateOnly),
		DryRun:          rep.DryRun,
		DebtsMarked:     rep.DebtsMarked,
		MembersLocked:   rep.MembersLocked,
		MembersUnlocked: rep.MembersUnlocked,
		Errors:          rep.Errors,
		TotalOverdue:    rep.TotalOverdue,
	}
}
