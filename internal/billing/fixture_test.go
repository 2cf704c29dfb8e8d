package billing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/studio-billing/internal/config"
	"github.com/Spok95/studio-billing/internal/domain/assignments"
	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
	"github.com/Spok95/studio-billing/internal/domain/payments"
	"github.com/Spok95/studio-billing/internal/domain/plans"
	"github.com/Spok95/studio-billing/internal/domain/reservations"
)

const (
	ana   int64 = 1
	beto  int64 = 2
	admin int64 = 99

	planOne      int64 = 11 // 1 class a week, 20 000
	planTwo      int64 = 12 // 2 classes a week, 35 000
	planThree    int64 = 13 // 3 classes a week, 45 000
	planPerClass int64 = 14

	slotMon     int64 = 21
	slotTue     int64 = 22
	slotWed     int64 = 23
	slotSun     int64 = 24
	slotFriSoon int64 = 25 // starts an hour after march20
	slotClosed  int64 = 26
)

var (
	// march5 is a Thursday before the due day: a new debt is not yet late.
	march5 = time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	// march20 is a Friday.
	march20 = time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

type recorder struct {
	mu       sync.Mutex
	receipts []Receipt
	notices  []OverdueNotice
}

func (r *recorder) PaymentConfirmed(_ context.Context, rc Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, rc)
	return nil
}

func (r *recorder) DebtOverdue(_ context.Context, n OverdueNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

type fixture struct {
	svc   *Service
	db    *memStore
	notes *recorder
	now   time.Time
}

func newFixture(t *testing.T, now time.Time, tweak ...func(*config.Studio)) *fixture {
	t.Helper()

	f := &fixture{db: newMemStore(), notes: &recorder{}, now: now}
	f.db.seq = 1000

	f.db.members[ana] = members.Member{ID: ana, Username: "ana", FirstName: "Ana", LastName: "Rojas", Role: members.RoleMember}
	f.db.members[beto] = members.Member{ID: beto, Username: "beto", Role: members.RoleMember}
	f.db.members[admin] = members.Member{ID: admin, Username: "front-desk", Role: members.RoleAdmin}

	f.db.plans[planOne] = plans.Plan{ID: planOne, Name: "1 class", Kind: plans.KindWeekly, ClassesPerWeek: 1, MonthlyPrice: d(20000), Active: true}
	f.db.plans[planTwo] = plans.Plan{ID: planTwo, Name: "2 classes", Kind: plans.KindWeekly, ClassesPerWeek: 2, MonthlyPrice: d(35000), Active: true}
	f.db.plans[planThree] = plans.Plan{ID: planThree, Name: "3 classes", Kind: plans.KindWeekly, ClassesPerWeek: 3, MonthlyPrice: d(45000), Active: true}
	perClass := d(3000)
	f.db.plans[planPerClass] = plans.Plan{ID: planPerClass, Name: "drop-in", Kind: plans.KindPerClass, MonthlyPrice: d(15000), PerClassPrice: &perClass, Active: true}

	f.db.slots[slotMon] = reservations.Slot{ID: slotMon, Name: "Mat Mon", Weekday: time.Monday, StartsAt: "09:00", Capacity: 8, Active: true}
	f.db.slots[slotTue] = reservations.Slot{ID: slotTue, Name: "Reformer Tue", Weekday: time.Tuesday, StartsAt: "09:00", Capacity: 8, Active: true}
	f.db.slots[slotWed] = reservations.Slot{ID: slotWed, Name: "Mat Wed", Weekday: time.Wednesday, StartsAt: "18:00", Capacity: 8, Active: true}
	f.db.slots[slotSun] = reservations.Slot{ID: slotSun, Name: "Sunday open", Weekday: time.Sunday, StartsAt: "10:00", Capacity: 8, Active: true}
	f.db.slots[slotFriSoon] = reservations.Slot{ID: slotFriSoon, Name: "Mat Fri", Weekday: time.Friday, StartsAt: "11:00", Capacity: 8, Active: true}
	f.db.slots[slotClosed] = reservations.Slot{ID: slotClosed, Name: "Old Sat", Weekday: time.Saturday, StartsAt: "08:00", Capacity: 8, Active: false}

	studio := config.DefaultStudio()
	for _, fn := range tweak {
		fn(&studio)
	}
	svc, err := New(f.db, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Studio:   studio,
		Billing:  config.DefaultBilling(),
		Location: time.UTC,
		Now:      func() time.Time { return f.now },
		Notifier: f.notes,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// assign gives the member plan for the whole of March 2026.
func (f *fixture) assign(member, plan int64) int64 {
	id := f.db.nextID()
	f.db.assignments[id] = assignments.Assignment{
		ID: id, MemberID: member, PlanID: plan,
		StartDate: date(2026, time.March, 1), EndDate: date(2026, time.March, 31),
		Active: true, Mode: assignments.ModeAutoRenew,
	}
	return id
}

func (f *fixture) ledger(member int64) ledgers.Ledger {
	l, ok := f.db.ledgers[member]
	if !ok {
		return ledgers.New(member)
	}
	return l
}

func (f *fixture) setLedger(l ledgers.Ledger) {
	f.db.ledgers[l.MemberID] = l
}

func (f *fixture) withPlan(member, plan int64) {
	l := f.ledger(member)
	l.CurrentPlanID = ptr(plan)
	f.setLedger(l)
}

func (f *fixture) addDebt(member int64, month time.Time, amount decimal.Decimal) int64 {
	id := f.db.nextID()
	f.db.debts[id] = debts.Debt{
		ID: id, MemberID: member, Month: month, PlanID: planOne,
		Original: amount, Remaining: amount, State: debts.StatePending,
		DueBy: time.Date(month.Year(), month.Month(), 10, 0, 0, 0, 0, time.UTC),
	}
	return id
}

func (f *fixture) reserve(member, slot int64) int64 {
	id := f.db.nextID()
	f.db.reservations[id] = reservations.Reservation{ID: id, Number: fmt.Sprintf("SEED%04d", id), MemberID: member, SlotID: slot, Active: true}
	return id
}

func (f *fixture) memberDebts(member int64) []debts.Debt {
	var out []debts.Debt
	for _, dd := range f.db.debts {
		if dd.MemberID == member {
			out = append(out, dd)
		}
	}
	return out
}

func (f *fixture) activeReservations(member int64) int {
	n := 0
	for _, r := range f.db.reservations {
		if r.MemberID == member && r.Active {
			n++
		}
	}
	return n
}

// assertBalanceDerived checks balance == confirmed payments - original debt amounts.
func (f *fixture) assertBalanceDerived(t *testing.T, member int64) {
	t.Helper()
	want := decimal.Zero
	for _, p := range f.db.payments {
		if p.MemberID == member && p.State == payments.StateConfirmed {
			want = want.Add(p.Amount)
		}
	}
	for _, dd := range f.db.debts {
		if dd.MemberID == member {
			want = want.Sub(dd.Original)
		}
	}
	got := f.ledger(member).Balance
	assert.Truef(t, want.Equal(got), "balance %s, derived %s", got, want)
}

func assertMoney(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}
