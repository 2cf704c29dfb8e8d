package payments

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/billing"
	"github.com/Spok95/studio-billing/internal/domain/payments"
	httpapi "github.com/Spok95/studio-billing/internal/infra/http"
)

// Service records and settles payments.
type Service interface {
	RecordPayment(ctx context.Context, in billing.PaymentInput) (*payments.Payment, *billing.Receipt, error)
	ConfirmPayment(ctx context.Context, id int64) (*payments.Payment, *billing.Receipt, error)
	RejectPayment(ctx context.Context, id int64) (*payments.Payment, error)
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func NewHandler(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

type recordRequest struct {
	MemberID   int64           `json:"member_id" validate:"required,gt=0"`
	Amount     decimal.Decimal `json:"amount"`
	PaidOn     string          `json:"paid_on" validate:"omitempty,datetime=2006-01-02"`
	Method     string          `json:"method" validate:"omitempty,oneof=cash transfer card other"`
	State      string          `json:"state" validate:"omitempty,oneof=confirmed pending"`
	Concept    string          `json:"concept" validate:"max=200"`
	Memo       string          `json:"memo"`
	ReceiptID  string          `json:"receipt_id" validate:"max=64"`
	RecordedBy *int64          `json:"recorded_by" validate:"omitempty,gt=0"`
}

// paymentResponse: receipt is set once the payment is confirmed and allocated.
type paymentResponse struct {
	Payment httpapi.PaymentJSON  `json:"payment"`
	Receipt *httpapi.ReceiptJSON `json:"receipt,omitempty"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/", h.record)
		r.Post("/{id}/confirm", h.confirm)
		r.Post("/{id}/reject", h.reject)
	})
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !httpapi.Decode(w, r, &req) {
		return
	}
	in := billing.PaymentInput{
		MemberID:   req.MemberID,
		Amount:     req.Amount,
		Method:     payments.Method(req.Method),
		State:      payments.State(req.State),
		Concept:    req.Concept,
		Memo:       req.Memo,
		ReceiptID:  req.ReceiptID,
		RecordedBy: req.RecordedBy,
	}
	if req.PaidOn != "" {
		in.PaidOn, _ = time.Parse(time.DateOnly, req.PaidOn)
	}

	p, receipt, err := h.svc.RecordPayment(r.Context(), in)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	h.log.Info("payment recorded", "payment_id", p.ID, "member_id", p.MemberID, "state", p.State)
	httpapi.WriteJSON(w, http.StatusCreated, paymentResponse{
		Payment: httpapi.NewPaymentJSON(*p),
		Receipt: httpapi.NewReceiptJSON(receipt),
	})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := httpapi.IDParam(w, r, "id")
	if !ok {
		return
	}
	p, receipt, err := h.svc.ConfirmPayment(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, paymentResponse{
		Payment: httpapi.NewPaymentJSON(*p),
		Receipt: httpapi.NewReceiptJSON(receipt),
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := httpapi.IDParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.RejectPayment(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, paymentResponse{Payment: httpapi.NewPaymentJSON(*p)})
}
