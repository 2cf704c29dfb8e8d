package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/config"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
)

// Receipt is published once a confirmed payment has been allocated.
type Receipt struct {
	MemberID        int64
	MemberName      string
	PaymentID       int64
	Amount          decimal.Decimal
	PaidOn          time.Time
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	PlanID          *int64
	PlanName        string
	ReceiptNumber   string
}

type OverdueNotice struct {
	MemberID      int64
	MemberName    string
	AmountOverdue decimal.Decimal
	MonthsOverdue int
}

// Notifier is the notification subsystem. Calls happen after commit; errors
// are logged and never undo billing state.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, r Receipt) error
	DebtOverdue(ctx context.Context, n OverdueNotice) error
}

type nopNotifier struct{}

func (nopNotifier) PaymentConfirmed(context.Context, Receipt) error { return nil }
func (nopNotifier) DebtOverdue(context.Context, OverdueNotice) error { return nil }

type Options struct {
	Studio   config.Studio
	Billing  config.Billing
	Location *time.Location
	// Now overrides the clock, tests only.
	Now      func() time.Time
	Notifier Notifier
}

type Service struct {
	store    Store
	log      *slog.Logger
	studio   config.Studio
	billing  config.Billing
	classDay map[time.Weekday]bool
	loc      *time.Location
	now      func() time.Time
	notifier Notifier
}

func New(store Store, log *slog.Logger, opts Options) (*Service, error) {
	days, err := opts.Studio.ClassDays()
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:    store,
		log:      log,
		studio:   opts.Studio,
		billing:  opts.Billing,
		classDay: make(map[time.Weekday]bool, len(days)),
		loc:      opts.Location,
		now:      opts.Now,
		notifier: opts.Notifier,
	}
	for _, d := range days {
		s.classDay[d] = true
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	return s, nil
}

// memberFn runs with the member's ledger locked.
type memberFn func(ctx context.Context, r Repos, m *members.Member, l *ledgers.Ledger) error

// errDryRun rolls back a transaction whose work should only be reported.
var errDryRun = errors.New("dry run")

// withMember runs fn in one serializable transaction scoped to the member,
// retrying once when the commit loses a race.
func (s *Service) withMember(ctx context.Context, memberID int64, fn memberFn) error {
	return s.retry(ctx, "member_id", memberID, func() error {
		return s.store.InTx(ctx, ReadWrite, func(ctx context.Context, r Repos) error {
			m, err := r.Members.Get(ctx, memberID)
			if err != nil {
				return err
			}
			if m == nil {
				return notFoundf("member %d", memberID)
			}
			l, err := r.Ledgers.Acquire(ctx, memberID)
			if err != nil {
				return err
			}
			return fn(ctx, r, m, l)
		})
	})
}

// write is withMember for catalog operations that touch no member.
func (s *Service) write(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return s.retry(ctx, "op", "catalog", func() error {
		return s.store.InTx(ctx, ReadWrite, fn)
	})
}

func (s *Service) read(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return s.store.InTx(ctx, ReadOnly, fn)
}

func (s *Service) retry(ctx context.Context, key string, val any, run func() error) error {
	err := run()
	if errors.Is(err, ErrIntegrity) {
		s.log.WarnContext(ctx, "transaction conflict, retrying", key, val, "err", err)
		err = run()
	}
	return err
}

// recomputeLedger is the only place the balance is derived:
// confirmed payments minus original amounts of every debt ever generated.
func (s *Service) recomputeLedger(ctx context.Context, r Repos, l *ledgers.Ledger) error {
	paid, err := r.Payments.SumConfirmed(ctx, l.MemberID)
	if err != nil {
		return err
	}
	owed, err := r.Debts.SumOriginal(ctx, l.MemberID)
	if err != nil {
		return err
	}
	l.Balance = paid.Sub(owed)
	return r.Ledgers.Save(ctx, *l)
}

// autoAssignPlan sets the ledger plan to the active weekly plan matching the
// member's number of active reservations. It does not save the ledger.
func (s *Service) autoAssignPlan(ctx context.Context, r Repos, l *ledgers.Ledger) (bool, error) {
	n, err := r.Reservations.CountActive(ctx, l.MemberID)
	if err != nil {
		return false, err
	}
	var planID *int64
	if n > 0 {
		p, err := r.Plans.FindActiveWeekly(ctx, n)
		if err != nil {
			return false, err
		}
		if p != nil {
			planID = &p.ID
		}
	}
	if sameID(l.CurrentPlanID, planID) {
		return false, nil
	}
	l.CurrentPlanID = planID
	return true, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) notifyReceipt(ctx context.Context, rc *Receipt) {
	if rc == nil {
		return
	}
	if err := s.notifier.PaymentConfirmed(ctx, *rc); err != nil {
		s.log.ErrorContext(ctx, "payment notification failed", "member_id", rc.MemberID, "payment_id", rc.PaymentID, "err", err)
	}
}
