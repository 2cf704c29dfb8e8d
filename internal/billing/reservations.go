package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/members"
	"github.com/Spok95/studio-billing/internal/domain/reservations"
)

const numberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newReservationNumber draws 8 characters from 0-9A-Z out of a random UUID.
func newReservationNumber() string {
	id := uuid.New()
	b := make([]byte, 8)
	for i := range b {
		b[i] = numberAlphabet[int(id[i])%len(numberAlphabet)]
	}
	return string(b)
}

func uniqueReservationNumber(ctx context.Context, r Repos) (string, error) {
	for range 10 {
		n := newReservationNumber()
		taken, err := r.Reservations.NumberExists(ctx, n)
		if err != nil {
			return "", err
		}
		if !taken {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a reservation number", ErrConflict)
}

// OnReservationCreated books slot for the member if the guard allows it. The
// reservation, the plan reassignment, the first debt of the month and the
// balance are written in one transaction.
func (s *Service) OnReservationCreated(ctx context.Context, memberID, slotID int64) (*reservations.Reservation, error) {
	var (
		out *reservations.Reservation
		g   generated
	)
	err := s.withMember(ctx, memberID, func(ctx context.Context, r Repos, _ *members.Member, l *ledgers.Ledger) error {
		g = generated{}
		slot, err := r.Reservations.GetSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return notFoundf("class slot %d", slotID)
		}
		if !slot.Active {
			return validationf("class slot %q is not active", slot.Name)
		}
		dec, err := s.evaluate(ctx, r, l, Attempt{MemberID: memberID, SlotID: slotID})
		if err != nil {
			return err
		}
		if !dec.Allowed {
			return s.denied(ctx, memberID, dec)
		}

		number, err := uniqueReservationNumber(ctx, r)
		if err != nil {
			return err
		}
		out, err = r.Reservations.Create(ctx, reservations.Reservation{
			Number:   number,
			MemberID: memberID,
			SlotID:   slotID,
			Active:   true,
		})
		if err != nil {
			return err
		}

		changed, err := s.autoAssignPlan(ctx, r, l)
		if err != nil {
			return err
		}
		if changed && l.CurrentPlanID != nil {
			if g, err = s.generateForMonth(ctx, r, l, monthStart(s.today()), false); err != nil {
				return err
			}
		}
		return s.recomputeLedger(ctx, r, l)
	})
	if err != nil {
		return nil, err
	}
	observeDebt(g)
	s.log.InfoContext(ctx, "reservation created", "member_id", memberID, "reservation_id", out.ID, "number", out.Number, "slot_id", slotID)
	return out, nil
}

// checkNotice refuses changes too close to the next class of the slot.
func (s *Service) checkNotice(slot reservations.Slot) (Decision, error) {
	hours := s.studio.CancellationNoticeHours
	if hours <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := s.clock()
	next, err := slot.NextOccurrence(now)
	if err != nil {
		return Decision{}, err
	}
	if next.Sub(now).Hours() <= float64(hours) {
		return deny(DenyNotice, fmt.Sprintf("changes need at least %d hours notice", hours)), nil
	}
	return Decision{Allowed: true}, nil
}

func (s *Service) loadOwnReservation(ctx context.Context, r Repos, memberID, id int64) (*reservations.Reservation, error) {
	res, err := r.Reservations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil || res.MemberID != memberID {
		return nil, notFoundf("reservation %d", id)
	}
	if !res.Active {
		return nil, validationf("reservation %s is already cancelled", res.Number)
	}
	dec, err := s.checkNotice(res.Slot)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, s.denied(ctx, memberID, dec)
	}
	return res, nil
}

// OnReservationModified moves the reservation to another slot.
func (s *Service) OnReservationModified(ctx context.Context, memberID, reservationID, newSlotID int64) (*reservations.Reservation, error) {
	var out *reservations.Reservation
	err := s.withMember(ctx, memberID, func(ctx context.Context, r Repos, _ *members.Member, l *ledgers.Ledger) error {
		res, err := s.loadOwnReservation(ctx, r, memberID, reservationID)
		if err != nil {
			return err
		}
		slot, err := r.Reservations.GetSlot(ctx, newSlotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return notFoundf("class slot %d", newSlotID)
		}
		if !slot.Active {
			return validationf("class slot %q is not active", slot.Name)
		}
		dec, err := s.evaluate(ctx, r, l, Attempt{MemberID: memberID, SlotID: newSlotID, ModifyingID: reservationID})
		if err != nil {
			return err
		}
		if !dec.Allowed {
			return s.denied(ctx, memberID, dec)
		}

		res.SlotID = newSlotID
		res.Slot = *slot
		if err := r.Reservations.Update(ctx, *res); err != nil {
			return err
		}
		out = res
		if _, err := s.autoAssignPlan(ctx, r, l); err != nil {
			return err
		}
		return s.recomputeLedger(ctx, r, l)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "reservation modified", "member_id", memberID, "reservation_id", reservationID, "slot_id", newSlotID)
	return out, nil
}

// OnReservationCancelled frees the reservation and re-derives the plan. Debts stay.
func (s *Service) OnReservationCancelled(ctx context.Context, memberID, reservationID int64) error {
	err := s.withMember(ctx, memberID, func(ctx context.Context, r Repos, _ *members.Member, l *ledgers.Ledger) error {
		res, err := s.loadOwnReservation(ctx, r, memberID, reservationID)
		if err != nil {
			return err
		}
		res.Active = false
		if err := r.Reservations.Update(ctx, *res); err != nil {
			return err
		}
		if _, err := s.autoAssignPlan(ctx, r, l); err != nil {
			return err
		}
		return s.recomputeLedger(ctx, r, l)
	})
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "reservation cancelled", "member_id", memberID, "reservation_id", reservationID)
	return nil
}
