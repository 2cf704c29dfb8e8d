package billing

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/studio-billing/internal/domain/assignments"
	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
	"github.com/Spok95/studio-billing/internal/domain/payments"
	"github.com/Spok95/studio-billing/internal/domain/plans"
	"github.com/Spok95/studio-billing/internal/domain/reservations"
)

// memStore is an in-memory Store. Transactions run one at a time and a
// failed one restores the state it started from.
type memStore struct {
	mu sync.Mutex
	state
	// failCommits makes the next read-write commits fail as serialization conflicts.
	failCommits int
	commits     int
}

type state struct {
	seq          int64
	members      map[int64]members.Member
	plans        map[int64]plans.Plan
	assignments  map[int64]assignments.Assignment
	ledgers      map[int64]ledgers.Ledger
	debts        map[int64]debts.Debt
	payments     map[int64]payments.Payment
	slots        map[int64]reservations.Slot
	reservations map[int64]reservations.Reservation
}

func newMemStore() *memStore {
	return &memStore{state: state{
		members:      map[int64]members.Member{},
		plans:        map[int64]plans.Plan{},
		assignments:  map[int64]assignments.Assignment{},
		ledgers:      map[int64]ledgers.Ledger{},
		debts:        map[int64]debts.Debt{},
		payments:     map[int64]payments.Payment{},
		slots:        map[int64]reservations.Slot{},
		reservations: map[int64]reservations.Reservation{},
	}}
}

func (s state) clone() state {
	return state{
		seq:          s.seq,
		members:      maps.Clone(s.members),
		plans:        maps.Clone(s.plans),
		assignments:  maps.Clone(s.assignments),
		ledgers:      maps.Clone(s.ledgers),
		debts:        maps.Clone(s.debts),
		payments:     maps.Clone(s.payments),
		slots:        maps.Clone(s.slots),
		reservations: maps.Clone(s.reservations),
	}
}

func (m *memStore) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memStore) InTx(ctx context.Context, mode TxMode, fn func(ctx context.Context, r Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	r := Repos{
		Members:      memMembers{m},
		Plans:        memPlans{m},
		Assignments:  memAssignments{m},
		Ledgers:      memLedgers{m},
		Debts:        memDebts{m},
		Payments:     memPayments{m},
		Reservations: memReservations{m},
	}
	err := fn(ctx, r)
	if err == nil && mode == ReadWrite && m.failCommits > 0 {
		m.failCommits--
		err = fmt.Errorf("%w: could not serialize access due to concurrent update", ErrIntegrity)
	}
	if err != nil || mode == ReadOnly {
		m.state = snapshot
		return err
	}
	m.commits++
	return nil
}

func ptr[T any](v T) *T { return &v }

type memMembers struct{ m *memStore }

func (r memMembers) Get(_ context.Context, id int64) (*members.Member, error) {
	v, ok := r.m.members[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

type memPlans struct{ m *memStore }

func (r memPlans) conflict(p plans.Plan) bool {
	if !p.Active || p.Kind != plans.KindWeekly {
		return false
	}
	for _, o := range r.m.plans {
		if o.ID != p.ID && o.Active && o.Kind == plans.KindWeekly && o.ClassesPerWeek == p.ClassesPerWeek {
			return true
		}
	}
	return false
}

func (r memPlans) Create(_ context.Context, p plans.Plan) (*plans.Plan, error) {
	if r.conflict(p) {
		return nil, plans.ErrDuplicateCapacity
	}
	p.ID = r.m.nextID()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	r.m.plans[p.ID] = p
	return &p, nil
}

func (r memPlans) Update(_ context.Context, p plans.Plan) (*plans.Plan, error) {
	if _, ok := r.m.plans[p.ID]; !ok {
		return nil, nil
	}
	if r.conflict(p) {
		return nil, plans.ErrDuplicateCapacity
	}
	p.UpdatedAt = time.Now()
	r.m.plans[p.ID] = p
	return &p, nil
}

func (r memPlans) Get(_ context.Context, id int64) (*plans.Plan, error) {
	v, ok := r.m.plans[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r memPlans) List(_ context.Context, onlyActive bool) ([]plans.Plan, error) {
	var out []plans.Plan
	for _, p := range r.m.plans {
		if onlyActive && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPlans) FindActiveWeekly(_ context.Context, n int) (*plans.Plan, error) {
	for _, p := range r.m.plans {
		if p.Active && p.Kind == plans.KindWeekly && p.ClassesPerWeek == n {
			return &p, nil
		}
	}
	return nil, nil
}

func (r memPlans) ActiveWeeklyConflict(_ context.Context, n int, exceptID int64) (bool, error) {
	return r.conflict(plans.Plan{ID: exceptID, Kind: plans.KindWeekly, ClassesPerWeek: n, Active: true}), nil
}

func (r memPlans) CountReferences(_ context.Context, id int64) (int, error) {
	n := 0
	for _, a := range r.m.assignments {
		if a.PlanID == id {
			n++
		}
	}
	for _, l := range r.m.ledgers {
		if l.CurrentPlanID != nil && *l.CurrentPlanID == id {
			n++
		}
	}
	for _, d := range r.m.debts {
		if d.PlanID == id {
			n++
		}
	}
	return n, nil
}

func (r memPlans) Delete(_ context.Context, id int64) error {
	delete(r.m.plans, id)
	return nil
}

type memAssignments struct{ m *memStore }

func (r memAssignments) Create(_ context.Context, a assignments.Assignment) (*assignments.Assignment, error) {
	a.ID = r.m.nextID()
	a.CreatedAt = time.Now()
	r.m.assignments[a.ID] = a
	return &a, nil
}

func (r memAssignments) Get(_ context.Context, id int64) (*assignments.Assignment, error) {
	v, ok := r.m.assignments[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r memAssignments) Update(_ context.Context, a assignments.Assignment) error {
	cur := r.m.assignments[a.ID]
	cur.EndDate, cur.Active, cur.Notes = a.EndDate, a.Active, a.Notes
	r.m.assignments[a.ID] = cur
	return nil
}

func (r memAssignments) ListByMember(_ context.Context, memberID int64) ([]assignments.Assignment, error) {
	var out []assignments.Assignment
	for _, a := range r.m.assignments {
		if a.MemberID == memberID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memAssignments) CapacityAt(_ context.Context, memberID int64, day time.Time) (int, error) {
	n := 0
	for _, a := range r.m.assignments {
		if a.MemberID == memberID && a.Covers(day) {
			n += r.m.plans[a.PlanID].ClassesPerWeek
		}
	}
	return n, nil
}

func (r memAssignments) ListDueForRenewal(_ context.Context, day time.Time) ([]assignments.Assignment, error) {
	var out []assignments.Assignment
	for _, a := range r.m.assignments {
		if a.Active && a.Mode == assignments.ModeAutoRenew && a.EndDate.Before(day) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memLedgers struct{ m *memStore }

func (r memLedgers) Acquire(_ context.Context, memberID int64) (*ledgers.Ledger, error) {
	l, ok := r.m.ledgers[memberID]
	if !ok {
		l = ledgers.New(memberID)
		l.CreatedAt, l.UpdatedAt = time.Now(), time.Now()
		r.m.ledgers[memberID] = l
	}
	return &l, nil
}

func (r memLedgers) Get(_ context.Context, memberID int64) (*ledgers.Ledger, error) {
	l, ok := r.m.ledgers[memberID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r memLedgers) Save(_ context.Context, l ledgers.Ledger) error {
	l.UpdatedAt = time.Now()
	r.m.ledgers[l.MemberID] = l
	return nil
}

func (r memLedgers) list(keep func(ledgers.Ledger) bool) []ledgers.Ledger {
	var out []ledgers.Ledger
	for _, id := range slices.Sorted(maps.Keys(r.m.ledgers)) {
		if l := r.m.ledgers[id]; keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func (r memLedgers) ListBillable(context.Context) ([]ledgers.Ledger, error) {
	return r.list(func(l ledgers.Ledger) bool { return l.Active && l.CurrentPlanID != nil }), nil
}

func (r memLedgers) ListLocked(context.Context) ([]ledgers.Ledger, error) {
	return r.list(func(l ledgers.Ledger) bool { return !l.CanReserve }), nil
}

type memDebts struct{ m *memStore }

func (r memDebts) Create(_ context.Context, d debts.Debt) (*debts.Debt, error) {
	for _, o := range r.m.debts {
		if o.MemberID == d.MemberID && o.Month.Equal(d.Month) {
			return nil, debts.ErrDuplicateMonth
		}
	}
	d.ID = r.m.nextID()
	d.CreatedAt = time.Now()
	r.m.debts[d.ID] = d
	return &d, nil
}

func (r memDebts) GetByMonth(_ context.Context, memberID int64, month time.Time) (*debts.Debt, error) {
	for _, d := range r.m.debts {
		if d.MemberID == memberID && d.Month.Equal(month) {
			return &d, nil
		}
	}
	return nil, nil
}

func (r memDebts) Delete(_ context.Context, id int64) error {
	delete(r.m.debts, id)
	return nil
}

func (r memDebts) Save(_ context.Context, d debts.Debt) error {
	cur := r.m.debts[d.ID]
	cur.Remaining, cur.State, cur.Notes = d.Remaining, d.State, d.Notes
	r.m.debts[d.ID] = cur
	return nil
}

func (r memDebts) filter(keep func(debts.Debt) bool) []debts.Debt {
	var out []debts.Debt
	for _, d := range r.m.debts {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r memDebts) ListOpen(_ context.Context, memberID int64) ([]debts.Debt, error) {
	return r.filter(func(d debts.Debt) bool { return d.MemberID == memberID && d.State.Open() }), nil
}

func (r memDebts) ListByMember(_ context.Context, memberID int64) ([]debts.Debt, error) {
	out := r.filter(func(d debts.Debt) bool { return d.MemberID == memberID })
	slices.Reverse(out)
	return out, nil
}

func (r memDebts) CountByMember(_ context.Context, memberID int64) (int, error) {
	return len(r.filter(func(d debts.Debt) bool { return d.MemberID == memberID })), nil
}

func (r memDebts) SumOriginal(_ context.Context, memberID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, d := range r.m.debts {
		if d.MemberID == memberID {
			sum = sum.Add(d.Original)
		}
	}
	return sum, nil
}

func (r memDebts) ListPastDue(_ context.Context, day time.Time) ([]debts.Debt, error) {
	return r.filter(func(d debts.Debt) bool {
		return (d.State == debts.StatePending || d.State == debts.StatePartial) && d.DueBy.Before(day)
	}), nil
}

func (r memDebts) OverdueSummary(_ context.Context, memberID int64) (int, decimal.Decimal, error) {
	n, sum := 0, decimal.Zero
	for _, d := range r.m.debts {
		if d.MemberID == memberID && d.State == debts.StateOverdue && d.Remaining.IsPositive() {
			n++
			sum = sum.Add(d.Remaining)
		}
	}
	return n, sum, nil
}

type memPayments struct{ m *memStore }

func (r memPayments) Create(_ context.Context, p payments.Payment) (*payments.Payment, error) {
	p.ID = r.m.nextID()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	r.m.payments[p.ID] = p
	return &p, nil
}

func (r memPayments) Get(_ context.Context, id int64) (*payments.Payment, error) {
	v, ok := r.m.payments[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r memPayments) SetState(_ context.Context, id int64, st payments.State) error {
	p := r.m.payments[id]
	p.State = st
	r.m.payments[id] = p
	return nil
}

func (r memPayments) SumConfirmed(_ context.Context, memberID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range r.m.payments {
		if p.MemberID == memberID && p.State == payments.StateConfirmed {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r memPayments) ListByMember(_ context.Context, memberID int64) ([]payments.Payment, error) {
	var out []payments.Payment
	for _, p := range r.m.payments {
		if p.MemberID == memberID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memReservations struct{ m *memStore }

func (r memReservations) GetSlot(_ context.Context, id int64) (*reservations.Slot, error) {
	v, ok := r.m.slots[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r memReservations) Get(_ context.Context, id int64) (*reservations.Reservation, error) {
	v, ok := r.m.reservations[id]
	if !ok {
		return nil, nil
	}
	v.Slot = r.m.slots[v.SlotID]
	return &v, nil
}

func (r memReservations) ListActive(_ context.Context, memberID int64) ([]reservations.Reservation, error) {
	var out []reservations.Reservation
	for _, id := range slices.Sorted(maps.Keys(r.m.reservations)) {
		v := r.m.reservations[id]
		if v.MemberID == memberID && v.Active {
			v.Slot = r.m.slots[v.SlotID]
			out = append(out, v)
		}
	}
	return out, nil
}

func (r memReservations) CountActive(ctx context.Context, memberID int64) (int, error) {
	list, _ := r.ListActive(ctx, memberID)
	return len(list), nil
}

func (r memReservations) NumberExists(_ context.Context, number string) (bool, error) {
	for _, v := range r.m.reservations {
		if v.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (r memReservations) Create(ctx context.Context, res reservations.Reservation) (*reservations.Reservation, error) {
	res.ID = r.m.nextID()
	res.CreatedAt, res.UpdatedAt = time.Now(), time.Now()
	r.m.reservations[res.ID] = res
	return r.Get(ctx, res.ID)
}

func (r memReservations) Update(_ context.Context, res reservations.Reservation) error {
	cur := r.m.reservations[res.ID]
	cur.SlotID, cur.Active, cur.Notes = res.SlotID, res.Active, res.Notes
	cur.UpdatedAt = time.Now()
	r.m.reservations[res.ID] = cur
	return nil
}
