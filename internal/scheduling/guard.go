package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictGuard is the only path that creates or moves bookings. It
// re-validates availability and occupancy inside a per-doctor lock, so the
// gap between "slot looked free" and "slot is reserved" is closed at
// commit time. Reads never take this lock.
type ConflictGuard struct {
	repo     Repository
	locker   Locker
	resolver *Resolver
}

func NewConflictGuard(repo Repository, locker Locker, resolver *Resolver) *ConflictGuard {
	return &ConflictGuard{repo: repo, locker: locker, resolver: resolver}
}

type ReserveRequest struct {
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	Kind            BookingKind
	StartAt         time.Time
	DurationMinutes int
	ServiceID       *uuid.UUID
}

// Reserve re-checks unavailability, rule coverage, and occupancy under the
// doctor's lock, then inserts. A losing contender gets ErrSlotUnavailable,
// never an opaque failure. All-or-nothing: a failed reserve writes nothing.
func (g *ConflictGuard) Reserve(ctx context.Context, req ReserveRequest) (*Booking, error) {
	if req.DurationMinutes <= 0 {
		return nil, validationErr("duration must be positive")
	}
	if !req.Kind.Valid() {
		return nil, validationErr("unknown booking kind %q", req.Kind)
	}
	if _, err := g.repo.GetDoctorByID(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	var booked *Booking
	err := g.locker.WithDoctorLock(ctx, req.DoctorID, func(ctx context.Context) error {
		if err := g.checkAvailability(ctx, req.DoctorID, req.StartAt, req.DurationMinutes); err != nil {
			return err
		}
		if err := g.checkOccupancy(ctx, req.DoctorID, req.StartAt, req.DurationMinutes, nil); err != nil {
			return err
		}

		b := &Booking{
			ID:              uuid.New(),
			DoctorID:        req.DoctorID,
			PatientID:       req.PatientID,
			Kind:            req.Kind,
			StartAt:         req.StartAt,
			DurationMinutes: req.DurationMinutes,
			Status:          StatusScheduled,
			ServiceID:       req.ServiceID,
		}
		inserted, err := g.repo.InsertBooking(ctx, b)
		if err != nil {
			return err
		}
		booked = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booked, nil
}

// Reschedule moves a booking through the same checks, with the booking's
// own current interval excluded from the occupied set.
func (g *ConflictGuard) Reschedule(ctx context.Context, bookingID uuid.UUID, newStart time.Time) (*Booking, error) {
	current, err := g.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot reschedule %s booking", ErrBookingTerminal, current.Status)
	}

	var moved *Booking
	err = g.locker.WithDoctorLock(ctx, current.DoctorID, func(ctx context.Context) error {
		// Re-read under the lock: the booking may have reached a terminal
		// state since the unlocked read above.
		fresh, err := g.repo.GetBookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if fresh.Status.Terminal() {
			return fmt.Errorf("%w: cannot reschedule %s booking", ErrBookingTerminal, fresh.Status)
		}

		if err := g.checkAvailability(ctx, fresh.DoctorID, newStart, fresh.DurationMinutes); err != nil {
			return err
		}
		if err := g.checkOccupancy(ctx, fresh.DoctorID, newStart, fresh.DurationMinutes, &bookingID); err != nil {
			return err
		}

		updated, err := g.repo.UpdateBookingStart(ctx, bookingID, newStart)
		if err != nil {
			return err
		}
		moved = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// checkAvailability re-runs the resolver's unavailability and rule checks
// for the requested interval.
func (g *ConflictGuard) checkAvailability(ctx context.Context, doctorID uuid.UUID, startAt time.Time, duration int) error {
	loc := g.resolver.Location()
	day := DateOf(startAt, loc)

	period, err := g.repo.ActivePeriodCovering(ctx, doctorID, day)
	if err != nil {
		return fmt.Errorf("check unavailability: %w", err)
	}
	if period != nil {
		return doctorUnavailableErr(period)
	}

	rules, err := g.resolver.activeRulesForDay(ctx, doctorID, day.Weekday())
	if err != nil {
		return err
	}
	startMinute := int(startAt.In(loc).Sub(day) / time.Minute)
	if !coveredByRules(rules, startMinute, duration) {
		return ErrOutsideAvailability
	}
	return nil
}

func (g *ConflictGuard) checkOccupancy(ctx context.Context, doctorID uuid.UUID, startAt time.Time, duration int, exclude *uuid.UUID) error {
	day := DateOf(startAt, g.resolver.Location())
	occupied, err := g.repo.OccupiedIntervals(ctx, doctorID, day, day.AddDate(0, 0, 1), exclude)
	if err != nil {
		return fmt.Errorf("load occupied intervals: %w", err)
	}
	if overlapsAny(NewInterval(startAt, duration), occupied) {
		return ErrSlotUnavailable
	}
	return nil
}
