package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/studio-billing/internal/domain/debts"
	"github.com/Spok95/studio-billing/internal/domain/payments"
)

func TestBalanceConvergesAfterEveryOperation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, march5)
	f.assign(ana, planTwo)

	_, err := f.svc.OnReservationCreated(ctx, ana, slotMon)
	require.NoError(t, err)
	f.assertBalanceDerived(t, ana)
	assertMoney(t, d(-20000), f.ledger(ana).Balance)

	_, err = f.svc.OnReservationCreated(ctx, ana, slotTue)
	require.NoError(t, err)
	f.assertBalanceDerived(t, ana)

	_, _, err = f.svc.RecordPayment(ctx, PaymentInput{MemberID: ana, Amount: d(4000)})
	require.NoError(t, err)
	f.assertBalanceDerived(t, ana)

	_, _, err = f.svc.RecordPayment(ctx, PaymentInput{MemberID: ana, Amount: d(1000), State: payments.StatePending})
	require.NoError(t, err)
	f.assertBalanceDerived(t, ana)
	assertMoney(t, d(-16000), f.ledger(ana).Balance)
	assert.True(t, f.ledger(ana).CanReserve)

	first, err := f.svc.RecomputeBalance(ctx, ana)
	require.NoError(t, err)
	second, err := f.svc.RecomputeBalance(ctx, ana)
	require.NoError(t, err)
	assertMoney(t, d(-16000), first)
	assertMoney(t, first, second)
}

func TestEditLedgerOverrideIsReplacedByNextRecompute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, march20)
	f.withPlan(ana, planOne)
	f.addDebt(ana, date(2026, time.February, 1), d(20000))

	override := d(500)
	notes := "agreed discount"
	l, err := f.svc.EditLedger(ctx, ana, LedgerEdit{PlanID: ptr(planTwo), Balance: &override, Notes: &notes})
	require.NoError(t, err)
	assertMoney(t, d(500), l.Balance)
	assert.Equal(t, planTwo, *f.ledger(ana).CurrentPlanID)
	assert.Equal(t, "agreed discount", f.ledger(ana).Notes)

	bal, err := f.svc.RecomputeBalance(ctx, ana)
	require.NoError(t, err)
	assertMoney(t, d(-20000), bal)

	_, err = f.svc.EditLedger(ctx, ana, LedgerEdit{PlanID: ptr(int64(404))})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.EditLedger(ctx, ana, LedgerEdit{PlanID: ptr(planOne), ClearPlan: true})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetLedgerForMemberWithoutHistory(t *testing.T) {
	f := newFixture(t, march20)

	v, err := f.svc.GetLedger(context.Background(), beto)
	require.NoError(t, err)
	assert.True(t, v.Ledger.CanReserve)
	assert.True(t, v.Ledger.Active)
	assert.Nil(t, v.Plan)
	assert.Empty(t, v.Debts)
	assert.Empty(t, f.db.ledgers, "reading must not create a ledger")

	_, err = f.svc.GetLedger(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentAllocatedOldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, march20)
	f.withPlan(ana, planOne)
	older := f.addDebt(ana, date(2026, time.January, 1), d(20000))
	newer := f.addDebt(ana, date(2026, time.February, 1), d(25000))
	_, err := f.svc.RecomputeBalance(ctx, ana)
	require.NoError(t, err)

	p, rc, err := f.svc.RecordPayment(ctx, PaymentInput{
		MemberID:   ana,
		Amount:     d(30000),
		PaidOn:     date(2026, time.March, 18),
		Method:     payments.MethodTransfer,
		RecordedBy: ptr(admin),
	})
	require.NoError(t, err)

	assert.Equal(t, debts.StatePaid, f.db.debts[older].State)
	assertMoney(t, d(0), f.db.debts[older].Remaining)
	assert.Equal(t, debts.StatePartial, f.db.debts[newer].State)
	assertMoney(t, d(15000), f.db.debts[newer].Remaining)

	require.NotNil(t, rc)
	assertMoney(t, d(-45000), rc.PreviousBalance)
	assertMoney(t, d(-15000), rc.NewBalance)
	assert.Equal(t, "Ana Rojas", rc.MemberName)
	assert.Regexp(t, `^R-\d{8}$`, rc.ReceiptNumber)
	assert.Equal(t, p.ID, rc.PaymentID)
	require.Len(t, f.notes.receipts, 1)

	l := f.ledger(ana)
	assertMoney(t, d(30000), *l.LastPaymentAmount)
	assert.Equal(t, date(2026, time.March, 18), *l.LastPaymentDate)
	f.assertBalanceDerived(t, ana)
}

func TestPaymentBeyondDebtsLeavesCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, march20)
	id := f.addDebt(ana, date(2026, time.March, 1), d(20000))

	_, rc, err := f.svc.RecordPayment(ctx, PaymentInput{MemberID: ana, Amount: d(26000), ReceiptID: "TRX-77"})
	require.NoError(t, err)
	assert.Equal(t, debts.StatePaid, f.db.debts[id].State)
	assertMoney(t, d(6000), rc.NewBalance)
	assert.Equal(t, "TRX-77", rc.ReceiptNumber)
}

func TestRecordPaymentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, march20)

	cases := map[string]PaymentInput{
		"zero amount":    {MemberID: ana, Amount: d(0)},
		"negative":       {MemberID: ana, Amount: d(-5)},
		"future date":    {MemberID: ana, Amount: d(10), PaidOn: date(2026, time.March, 21)},
		"unknown method": {MemberID: ana, Amount: d(10), Method: "crypto"},
		"not an admin":   {MemberID: ana, Amount: d(10), RecordedBy: ptr(beto)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.svc.RecordPayment(ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, f.db.payments)

	_, _, err := f.svc.RecordPayment(ctx, PaymentInput{MemberID: 404, Amount: d(10)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingPaymentConfirmAndReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, march20)
	debtID := f.addDebt(ana, date(2026, time.March, 1), d(20000))
	_, err := f.svc.RecomputeBalance(ctx, ana)
	require.NoError(t, err)

	pending, rc, err := f.svc.RecordPayment(ctx, PaymentInput{MemberID: ana, Amount: d(20000), State: payments.StatePending})
	require.NoError(t, err)
	assert.Nil(t, rc)
	assert.Equal(t, debts.StatePending, f.db.debts[debtID].State)
	assertMoney(t, d(-20000), f.ledger(ana).Balance)

	p, rc, err := f.svc.ConfirmPayment(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StateConfirmed, p.State)
	require.NotNil(t, rc)
	assertMoney(t, d(0), rc.NewBalance)
	assert.Equal(t, debts.StatePaid, f.db.debts[debtID].State)

	_, _, err = f.svc.ConfirmPayment(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrConflict)

	other, _, err := f.svc.RecordPayment(ctx, PaymentInput{MemberID: ana, Amount: d(999), State: payments.StatePending})
	require.NoError(t, err)
	rejected, err := f.svc.RejectPayment(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StateRejected, rejected.State)
	assertMoney(t, d(0), f.ledger(ana).Balance)
	f.assertBalanceDerived(t, ana)

	_, err = f.svc.RejectPayment(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegrityFailureRetriedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, march20)
	f.addDebt(ana, date(2026, time.March, 1), d(20000))

	f.db.failCommits = 1
	_, _, err := f.svc.RecordPayment(ctx, PaymentInput{MemberID: ana, Amount: d(5000)})
	require.NoError(t, err)
	assert.Len(t, f.db.payments, 1)

	f.db.failCommits = 2
	_, _, err = f.svc.RecordPayment(ctx, PaymentInput{MemberID: ana, Amount: d(5000)})
	require.ErrorIs(t, err, ErrIntegrity)
	assert.Len(t, f.db.payments, 1, "failed allocation must leave no trace")
	f.assertBalanceDerived(t, ana)
}
