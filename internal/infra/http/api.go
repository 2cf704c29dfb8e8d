package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Spok95/studio-billing/internal/billing"
	"github.com/Spok95/studio-billing/internal/domain/assignments"
	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/plans"
	"github.com/Spok95/studio-billing/internal/domain/reservations"
)

// BillingAPI is the part of the billing service exposed over HTTP.
type BillingAPI interface {
	CanReserve(ctx context.Context, memberID int64) (billing.Decision, error)
	GetLedger(ctx context.Context, memberID int64) (*billing.LedgerView, error)
	EditLedger(ctx context.Context, memberID int64, e billing.LedgerEdit) (*ledgers.Ledger, error)

	OnReservationCreated(ctx context.Context, memberID, slotID int64) (*reservations.Reservation, error)
	OnReservationModified(ctx context.Context, memberID, reservationID, newSlotID int64) (*reservations.Reservation, error)
	OnReservationCancelled(ctx context.Context, memberID, reservationID int64) error

	ListPlans(ctx context.Context, onlyActive bool) ([]plans.Plan, error)
	CreatePlan(ctx context.Context, in billing.PlanInput) (*plans.Plan, error)
	UpdatePlan(ctx context.Context, id int64, in billing.PlanInput) (*plans.Plan, error)
	DeactivatePlan(ctx context.Context, id int64) (*plans.Plan, error)
	DeletePlan(ctx context.Context, id int64) error

	Assign(ctx context.Context, in billing.AssignInput) (*assignments.Assignment, error)
	ListAssignments(ctx context.Context, memberID int64) ([]assignments.Assignment, error)
	CancelAssignment(ctx context.Context, id int64) (*assignments.Assignment, error)
	RenewAssignment(ctx context.Context, id int64) (*assignments.Assignment, error)

	RegenerateDebt(ctx context.Context, memberID int64, month time.Time, force bool) (*debts.Debt, error)
	GenerateForAllActiveMembers(ctx context.Context, month time.Time, opts billing.GenerateOptions) (billing.GenerateReport, error)
	MarkOverdueAndLock(ctx context.Context, today time.Time, dryRun bool) (billing.OverdueReport, error)
}

type API struct {
	svc BillingAPI
	log *slog.Logger
}

func NewAPI(svc BillingAPI, log *slog.Logger) *API {
	return &API{svc: svc, log: log}
}

// Routes mounts the member and admin endpoints under /api.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/members/{memberID}", func(r chi.Router) {
		r.Get("/can-reserve", a.canReserve)
		r.Get("/ledger", a.getLedger)
		r.Post("/reservations", a.createReservation)
		r.Put("/reservations/{id}", a.modifyReservation)
		r.Delete("/reservations/{id}", a.cancelReservation)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/plans", a.listPlans)
		r.Post("/plans", a.createPlan)
		r.Put("/plans/{id}", a.updatePlan)
		r.Post("/plans/{id}/deactivate", a.deactivatePlan)
		r.Delete("/plans/{id}", a.deletePlan)

		r.Get("/members/{memberID}/assignments", a.listAssignments)
		r.Post("/members/{memberID}/assignments", a.assign)
		r.Post("/assignments/{id}/cancel", a.cancelAssignment)
		r.Post("/assignments/{id}/renew", a.renewAssignment)

		r.Patch("/members/{memberID}/ledger", a.editLedger)
		r.Post("/members/{memberID}/debts/regenerate", a.regenerateDebt)

		r.Post("/jobs/generate-dues", a.generateDues)
		r.Post("/jobs/mark-overdue", a.markOverdue)
	})
}

// ---- member ----

func (a *API) canReserve(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	d, err := a.svc.CanReserve(r.Context(), memberID)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, decisionFrom(d))
}

func (a *API) getLedger(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	v, err := a.svc.GetLedger(r.Context(), memberID)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, ledgerViewFrom(v))
}

func (a *API) createReservation(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	var req reservationRequest
	if !Decode(w, r, &req) {
		return
	}
	res, err := a.svc.OnReservationCreated(r.Context(), memberID, req.SlotID)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, reservationFrom(*res))
}

func (a *API) modifyReservation(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	resID, ok := IDParam(w, r, "id")
	if !ok {
		return
	}
	var req reservationRequest
	if !Decode(w, r, &req) {
		return
	}
	res, err := a.svc.OnReservationModified(r.Context(), memberID, resID, req.SlotID)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, reservationFrom(*res))
}

func (a *API) cancelReservation(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	resID, ok := IDParam(w, r, "id")
	if !ok {
		return
	}
	if err := a.svc.OnReservationCancelled(r.Context(), memberID, resID); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- plans ----

func (a *API) listPlans(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"
	list, err := a.svc.ListPlans(r.Context(), onlyActive)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	out := make([]PlanJSON, 0, len(list))
	for _, p := range list {
		out = append(out, planJSON(p))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *API) createPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !Decode(w, r, &req) {
		return
	}
	p, err := a.svc.CreatePlan(r.Context(), req.input())
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, planJSON(*p))
}

func (a *API) updatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := IDParam(w, r, "id")
	if !ok {
		return
	}
	var req planRequest
	if !Decode(w, r, &req) {
		return
	}
	p, err := a.svc.UpdatePlan(r.Context(), id, req.input())
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, planJSON(*p))
}

func (a *API) deactivatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := IDParam(w, r, "id")
	if !ok {
		return
	}
	p, err := a.svc.DeactivatePlan(r.Context(), id)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, planJSON(*p))
}

func (a *API) deletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := IDParam(w, r, "id")
	if !ok {
		return
	}
	if err := a.svc.DeletePlan(r.Context(), id); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- assignments ----

func (a *API) listAssignments(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	list, err := a.svc.ListAssignments(r.Context(), memberID)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	out := make([]AssignmentJSON, 0, len(list))
	for _, as := range list {
		out = append(out, assignmentJSON(as))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *API) assign(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	var req assignRequest
	if !Decode(w, r, &req) {
		return
	}
	// формат уже проверен валидатором
	start, _ := time.Parse(time.DateOnly, req.Start)
	end, _ := time.Parse(time.DateOnly, req.End)

	as, err := a.svc.Assign(r.Context(), billing.AssignInput{
		MemberID:  memberID,
		PlanID:    req.PlanID,
		Start:     start,
		End:       end,
		Mode:      assignments.Mode(req.Mode),
		Notes:     req.Notes,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, assignmentJSON(*as))
}

func (a *API) changeAssignment(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (*assignments.Assignment, error)) {
	id, ok := IDParam(w, r, "id")
	if !ok {
		return
	}
	as, err := fn(r.Context(), id)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, assignmentJSON(*as))
}

func (a *API) cancelAssignment(w http.ResponseWriter, r *http.Request) {
	a.changeAssignment(w, r, a.svc.CancelAssignment)
}

func (a *API) renewAssignment(w http.ResponseWriter, r *http.Request) {
	a.changeAssignment(w, r, a.svc.RenewAssignment)
}

// ---- ledger & debts ----

func (a *API) editLedger(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	var req ledgerEditRequest
	if !Decode(w, r, &req) {
		return
	}
	l, err := a.svc.EditLedger(r.Context(), memberID, billing.LedgerEdit{
		PlanID:    req.PlanID,
		ClearPlan: req.ClearPlan,
		Balance:   req.Balance,
		Notes:     req.Notes,
		Active:    req.Active,
	})
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, ledgerJSON(*l))
}

func (a *API) regenerateDebt(w http.ResponseWriter, r *http.Request) {
	memberID, ok := IDParam(w, r, "memberID")
	if !ok {
		return
	}
	var req regenerateRequest
	if !Decode(w, r, &req) {
		return
	}
	month, _ := time.Parse(monthLayout, req.Month)

	d, err := a.svc.RegenerateDebt(r.Context(), memberID, month, req.Force)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, debtJSON(*d))
}

// ---- jobs ----

func (a *API) generateDues(w http.ResponseWriter, r *http.Request) {
	var req generateDuesRequest
	if !Decode(w, r, &req) {
		return
	}
	var month time.Time
	if req.Month != "" {
		month, _ = time.Parse(monthLayout, req.Month)
	}
	rep, err := a.svc.GenerateForAllActiveMembers(r.Context(), month, billing.GenerateOptions{Force: req.Force, DryRun: req.DryRun})
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, generateReportFrom(rep))
}

func (a *API) markOverdue(w http.ResponseWriter, r *http.Request) {
	var req markOverdueRequest
	if !Decode(w, r, &req) {
		return
	}
	var day time.Time
	if req.Day != "" {
		day, _ = time.Parse(time.DateOnly, req.Day)
	}
	rep, err := a.svc.MarkOverdueAndLock(r.Context(), day, req.DryRun)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, overdueReportFrom(rep))
}
