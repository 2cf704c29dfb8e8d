// Package notify fans billing events out to the configured channels.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Spok95/studio-billing/internal/billing"
)

// Log writes every event to the structured log. Always on, so that a
// deployment without Telegram or RabbitMQ still leaves a trace.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log { return &Log{log: log} }

func (l *Log) PaymentConfirmed(_ context.Context, r billing.Receipt) error {
	l.log.Info("payment confirmed",
		"member_id", r.MemberID,
		"payment_id", r.PaymentID,
		"amount", r.Amount.StringFixed(2),
		"balance", r.NewBalance.StringFixed(2),
		"receipt", r.ReceiptNumber,
	)
	return nil
}

func (l *Log) DebtOverdue(_ context.Context, n billing.OverdueNotice) error {
	l.log.Warn("debt overdue",
		"member_id", n.MemberID,
		"amount", n.AmountOverdue.StringFixed(2),
		"months", n.MonthsOverdue,
	)
	return nil
}

// Multi delivers to every notifier and joins the errors; one failing
// channel does not stop the others.
type Multi []billing.Notifier

func (m Multi) PaymentConfirmed(ctx context.Context, r billing.Receipt) error {
	var errs []error
	for _, n := range m {
		if err := n.PaymentConfirmed(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) DebtOverdue(ctx context.Context, o billing.OverdueNotice) error {
	var errs []error
	for _, n := range m {
		if err := n.DebtOverdue(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
