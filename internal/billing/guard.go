package billing

import (
	"context"
	"fmt"

	"github.com/Spok95/studio-billing/internal/domain/ledgers"
	"github.com/Spok95/studio-billing/internal/domain/reservations"
	"github.com/Spok95/studio-billing/internal/infra/metrics"
)

// Attempt describes a reservation the member wants to hold. SlotID 0 asks
// only whether any reservation is possible; ModifyingID is set when moving
// an existing reservation.
type Attempt struct {
	MemberID    int64
	SlotID      int64
	ModifyingID int64
}

type Decision struct {
	Allowed           bool
	Code              DenialCode
	Reason            string
	RemainingThisWeek int
}

func deny(code DenialCode, reason string) Decision {
	return Decision{Code: code, Reason: reason}
}

// Err returns the denial as an error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DenialError{Code: d.Code, Reason: d.Reason}
}

// evaluate checks capacity first and payment standing last. l may be nil for
// a member who never had a ledger.
func (s *Service) evaluate(ctx context.Context, r Repos, l *ledgers.Ledger, at Attempt) (Decision, error) {
	capacity, err := r.Assignments.CapacityAt(ctx, at.MemberID, weekStart(s.today()))
	if err != nil {
		return Decision{}, err
	}
	if s.studio.MaxReservations > 0 && capacity > s.studio.MaxReservations {
		capacity = s.studio.MaxReservations
	}
	if capacity == 0 {
		return deny(DenyNoPlan, "no active plan"), nil
	}

	active, err := r.Reservations.ListActive(ctx, at.MemberID)
	if err != nil {
		return Decision{}, err
	}
	var (
		current *reservations.Reservation
		others  []reservations.Reservation
		used    int
	)
	for i := range active {
		if at.ModifyingID != 0 && active[i].ID == at.ModifyingID {
			current = &active[i]
			continue
		}
		others = append(others, active[i])
		if s.classDay[active[i].Slot.Weekday] {
			used++
		}
	}

	if used >= capacity {
		return deny(DenyCapacity, fmt.Sprintf("weekly capacity reached: %d/%d", used, capacity)), nil
	}
	if current != nil && current.SlotID == at.SlotID {
		return deny(DenySameSlot, "must pick a different slot"), nil
	}
	if at.SlotID != 0 {
		for _, res := range others {
			if res.SlotID == at.SlotID {
				return deny(DenyDuplicate, "duplicate reservation for this class"), nil
			}
		}
	}
	if l != nil && !l.CanReserve {
		return deny(DenyOverdue, "payment overdue"), nil
	}
	return Decision{Allowed: true, RemainingThisWeek: capacity - used}, nil
}

// Evaluate runs the guard against a consistent snapshot without changing anything.
func (s *Service) Evaluate(ctx context.Context, at Attempt) (Decision, error) {
	var dec Decision
	err := s.read(ctx, func(ctx context.Context, r Repos) error {
		m, err := r.Members.Get(ctx, at.MemberID)
		if err != nil {
			return err
		}
		if m == nil {
			return notFoundf("member %d", at.MemberID)
		}
		l, err := r.Ledgers.Get(ctx, at.MemberID)
		if err != nil {
			return err
		}
		dec, err = s.evaluate(ctx, r, l, at)
		return err
	})
	return dec, err
}

// CanReserve tells the booking subsystem whether the member may book at all.
func (s *Service) CanReserve(ctx context.Context, memberID int64) (Decision, error) {
	return s.Evaluate(ctx, Attempt{MemberID: memberID})
}

func (s *Service) denied(ctx context.Context, memberID int64, d Decision) error {
	metrics.GuardDenials.WithLabelValues(string(d.Code)).Inc()
	s.log.InfoContext(ctx, "reservation denied", "member_id", memberID, "reason", d.Reason)
	return d.Err()
}
