package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Коллекторы регистрируются в default registry, /metrics отдаёт их через promhttp.
var (
	DebtsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "debts_generated_total",
		Help:      "Monthly debts created, by kind (full, half_month, regenerated).",
	}, []string{"kind"})

	DebtAmountGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "debt_amount_generated_total",
		Help:      "Sum of original amounts of generated debts.",
	})

	PaymentsAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "payments_allocated_total",
		Help:      "Confirmed payments allocated against debts.",
	})

	PaymentAmountAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "payment_amount_allocated_total",
		Help:      "Sum of confirmed payment amounts.",
	})

	GuardDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "guard_denials_total",
		Help:      "Reservation attempts denied by the capacity guard, by reason code.",
	}, []string{"reason"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "job_runs_total",
		Help:      "Scheduled job executions, by job and outcome.",
	}, []string{"job", "outcome"})
)

// Amount converts money to a float for counters; precision loss is acceptable here.
func Amount(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
