package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrServiceNotFound = errors.New("service not found")
	ErrRuleNotFound    = errors.New("availability rule not found")
	ErrPeriodNotFound  = errors.New("unavailability period not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// PatientDirectory is the collaborator contract for patient lookup.
type PatientDirectory interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// ServiceCatalog resolves a service's booked duration.
type ServiceCatalog interface {
	GetServiceByID(ctx context.Context, id uuid.UUID) (*ServiceOffering, error)
}

// ScheduleReader is the read side consumed by the slot resolver. All reads
// are live; the ledger must never be cached between resolution and commit.
type ScheduleReader interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	// ActiveRules returns the doctor's active rules for one weekday,
	// sorted by start minute.
	ActiveRules(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]WeeklyRule, error)

	// ActivePeriodCovering returns the active unavailability period covering
	// date, or (nil, nil) when the doctor is not blocked.
	ActivePeriodCovering(ctx context.Context, doctorID uuid.UUID, date time.Time) (*UnavailabilityPeriod, error)

	// OccupiedIntervals projects non-cancelled bookings of every kind that
	// intersect [from, to), sorted by start. exclude omits one booking,
	// used when rescheduling it.
	OccupiedIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]Interval, error)
}

// Repository contains all storage interactions needed by the engine.
type Repository interface {
	PatientDirectory
	ServiceCatalog
	ScheduleReader

	// Weekly availability rules
	ListRules(ctx context.Context, doctorID uuid.UUID) ([]WeeklyRule, error)
	UpsertRule(ctx context.Context, rule *WeeklyRule) error
	DeactivateRule(ctx context.Context, id uuid.UUID) error

	// Unavailability periods
	GetPeriodByID(ctx context.Context, id uuid.UUID) (*UnavailabilityPeriod, error)
	ListPeriods(ctx context.Context, doctorID uuid.UUID) ([]UnavailabilityPeriod, error)
	CreatePeriod(ctx context.Context, p *UnavailabilityPeriod) error
	UpdatePeriod(ctx context.Context, p *UnavailabilityPeriod) error
	DeletePeriod(ctx context.Context, id uuid.UUID) error

	// Bookings. InsertBooking and UpdateBookingStart carry a storage-level
	// overlap guard and return ErrSlotUnavailable when it trips, so
	// exclusivity holds even without the advisory lock.
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	InsertBooking(ctx context.Context, b *Booking) (*Booking, error)
	UpdateBookingStart(ctx context.Context, id uuid.UUID, newStart time.Time) (*Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
}
