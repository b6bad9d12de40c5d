package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationDispatcher receives post-commit booking events. Calls are
// fire-and-forget: they run after the write committed and outside any lock
// held by the guard, and their failures never fail the booking.
type NotificationDispatcher interface {
	OnBookingCreated(ctx context.Context, b Booking)
	OnBookingCancelled(ctx context.Context, b Booking)
}

// NopDispatcher discards all events.
type NopDispatcher struct{}

func (NopDispatcher) OnBookingCreated(context.Context, Booking)   {}
func (NopDispatcher) OnBookingCancelled(context.Context, Booking) {}

// BookingService orchestrates booking creation, rescheduling, and
// cancellation for appointment and surgery callers. It owns no interval
// math: all scheduling decisions live in the resolver and the guard.
type BookingService struct {
	repo       Repository
	guard      *ConflictGuard
	resolver   *Resolver
	dispatcher NotificationDispatcher
	log        *zap.Logger
}

func NewBookingService(repo Repository, guard *ConflictGuard, resolver *Resolver, dispatcher NotificationDispatcher, log *zap.Logger) *BookingService {
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingService{
		repo:       repo,
		guard:      guard,
		resolver:   resolver,
		dispatcher: dispatcher,
		log:        log,
	}
}

func (s *BookingService) Resolver() *Resolver { return s.resolver }

type CreateBookingRequest struct {
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	Kind            BookingKind
	StartAt         time.Time
	DurationMinutes int        // 0: derive from service, else granularity
	ServiceID       *uuid.UUID
}

// Create validates the patient, resolves the booking duration, and commits
// through the guard. The created notification fires strictly after commit.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	if req.StartAt.IsZero() {
		return nil, validationErr("start_at is required")
	}
	if !req.Kind.Valid() {
		return nil, validationErr("unknown booking kind %q", req.Kind)
	}
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	duration, err := s.resolveDuration(ctx, req.DurationMinutes, req.ServiceID)
	if err != nil {
		return nil, err
	}

	booking, err := s.guard.Reserve(ctx, ReserveRequest{
		DoctorID:        req.DoctorID,
		PatientID:       req.PatientID,
		Kind:            req.Kind,
		StartAt:         req.StartAt,
		DurationMinutes: duration,
		ServiceID:       req.ServiceID,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("doctor_id", booking.DoctorID.String()),
		zap.String("kind", string(booking.Kind)),
		zap.Time("start_at", booking.StartAt),
		zap.Int("duration_minutes", booking.DurationMinutes),
	)
	s.dispatcher.OnBookingCreated(ctx, *booking)

	return booking, nil
}

// Reschedule moves a booking to a new start through the guard.
func (s *BookingService) Reschedule(ctx context.Context, bookingID uuid.UUID, newStart time.Time) (*Booking, error) {
	if newStart.IsZero() {
		return nil, validationErr("new_start_at is required")
	}

	booking, err := s.guard.Reschedule(ctx, bookingID, newStart)
	if err != nil {
		return nil, err
	}

	s.log.Info("booking rescheduled",
		zap.String("booking_id", booking.ID.String()),
		zap.Time("start_at", booking.StartAt),
	)
	return booking, nil
}

// Cancel bypasses the guard: it unconditionally frees the doctor's
// capacity and moves the booking to its terminal cancelled state.
func (s *BookingService) Cancel(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	current, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot cancel %s booking", ErrBookingTerminal, current.Status)
	}

	cancelled, err := s.repo.CancelBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.log.Info("booking cancelled", zap.String("booking_id", cancelled.ID.String()))
	s.dispatcher.OnBookingCancelled(ctx, *cancelled)

	return cancelled, nil
}

// Complete marks a booking as done. Terminal afterwards.
func (s *BookingService) Complete(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.transition(ctx, bookingID, StatusCompleted)
}

// Postpone parks a surgery without choosing a new date yet. The surgery
// keeps its slot until rescheduled, so the theatre block is not silently
// given away.
func (s *BookingService) Postpone(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.transition(ctx, bookingID, StatusPostponed)
}

func (s *BookingService) transition(ctx context.Context, bookingID uuid.UUID, to BookingStatus) (*Booking, error) {
	current, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot mark %s booking as %s", ErrBookingTerminal, current.Status, to)
	}
	if !to.ValidFor(current.Kind) {
		return nil, validationErr("%s bookings cannot be %s", current.Kind, to)
	}
	if current.Status == to {
		return nil, validationErr("booking is already %s", to)
	}

	// Compare-and-set against the status just read; a concurrent transition
	// surfaces as not found from the store.
	updated, err := s.repo.UpdateBookingStatus(ctx, bookingID, current.Status, to)
	if err != nil {
		return nil, err
	}

	s.log.Info("booking status changed",
		zap.String("booking_id", updated.ID.String()),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBookingByID(ctx, id)
}

// ResolveSlots is the read surface: free slots for a doctor/date.
func (s *BookingService) ResolveSlots(ctx context.Context, req ResolveRequest) ([]Slot, *UnavailabilityPeriod, error) {
	return s.resolver.ResolveSlots(ctx, req)
}

// IsDateBlocked reports whether a date has no bookable slots at all, for
// calendar UIs to grey out fully unavailable days.
func (s *BookingService) IsDateBlocked(ctx context.Context, doctorID uuid.UUID, date, now time.Time) (bool, error) {
	slots, _, err := s.resolver.ResolveSlots(ctx, ResolveRequest{
		DoctorID: doctorID,
		Date:     date,
		Now:      now,
	})
	if err != nil {
		return false, err
	}
	return len(slots) == 0, nil
}

func (s *BookingService) resolveDuration(ctx context.Context, requested int, serviceID *uuid.UUID) (int, error) {
	if requested > 0 {
		return requested, nil
	}
	if serviceID != nil {
		svc, err := s.repo.GetServiceByID(ctx, *serviceID)
		if err != nil {
			return 0, err
		}
		if svc.DurationMinutes > 0 {
			return svc.DurationMinutes, nil
		}
	}
	return s.resolver.opts.GranularityMinutes, nil
}
