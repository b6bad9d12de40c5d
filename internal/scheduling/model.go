package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookingKind string

const (
	KindAppointment BookingKind = "appointment"
	KindSurgery     BookingKind = "surgery"
)

func (k BookingKind) Valid() bool {
	return k == KindAppointment || k == KindSurgery
}

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusScheduled BookingStatus = "scheduled"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusPostponed BookingStatus = "postponed" // surgeries only
)

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s BookingStatus) ValidFor(kind BookingKind) bool {
	switch s {
	case StatusPending, StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	case StatusPostponed:
		return kind == KindSurgery
	default:
		return false
	}
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServiceOffering is a bookable service with a fixed duration, looked up
// when a booking request names a service instead of an explicit duration.
type ServiceOffering struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WeeklyRule is a recurring availability window for one weekday.
// Times are minutes since midnight, so a 09:00-12:00 shift is 540-720.
type WeeklyRule struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OverlapsRule reports whether two rules' windows intersect, half-open.
func (r WeeklyRule) OverlapsRule(other WeeklyRule) bool {
	return r.StartMinute < other.EndMinute && other.StartMinute < r.EndMinute
}

// UnavailabilityPeriod blocks a doctor for a date range regardless of
// weekly rules. A nil EndDate means a single blocked day.
type UnavailabilityPeriod struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartDate time.Time
	EndDate   *time.Time
	Reason    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether date (a midnight-truncated day) falls inside the
// period, inclusive of both ends.
func (p UnavailabilityPeriod) Covers(date time.Time) bool {
	end := p.StartDate
	if p.EndDate != nil {
		end = *p.EndDate
	}
	return !date.Before(p.StartDate) && !date.After(end)
}

type Booking struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	Kind            BookingKind
	StartAt         time.Time
	DurationMinutes int
	Status          BookingStatus
	ServiceID       *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b Booking) Interval() Interval {
	return NewInterval(b.StartAt, b.DurationMinutes)
}

// Slot is a candidate start time. It is computed, never persisted.
type Slot struct {
	StartAt         time.Time
	DurationMinutes int
}

// Interval is a half-open [Start, End) span of occupied doctor time.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start time.Time, durationMinutes int) Interval {
	return Interval{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// Overlaps uses the half-open test: a.start < b.end && b.start < a.end.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

const minutesPerDay = 24 * 60

// ParseClock parses a "HH:MM" 24h string into minutes since midnight.
// "24:00" is accepted as the exclusive end of day. The whole string must
// be a clock time; trailing text is rejected.
func ParseClock(s string) (int, error) {
	if s == "24:00" {
		return minutesPerDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DateOf truncates t to midnight in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
