package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed rules, periods, or booking requests.
	// Rejected before any write; never partially applied.
	ErrValidation = errors.New("validation failed")

	// ErrSlotUnavailable means the requested interval overlaps an existing
	// non-cancelled booking. Recoverable: re-resolve and pick another slot.
	ErrSlotUnavailable = errors.New("slot overlaps an existing booking")

	// ErrOutsideAvailability means the requested start falls outside every
	// active weekly rule for that weekday.
	ErrOutsideAvailability = errors.New("start time outside doctor availability")

	// ErrDoctorUnavailable means the date falls inside an active
	// unavailability period. Wrapped with the period reason when present.
	ErrDoctorUnavailable = errors.New("doctor unavailable on requested date")

	// ErrBookingTerminal rejects mutations of completed or cancelled bookings.
	ErrBookingTerminal = errors.New("booking is in a terminal state")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func doctorUnavailableErr(p *UnavailabilityPeriod) error {
	if p != nil && p.Reason != "" {
		return fmt.Errorf("%w: %s", ErrDoctorUnavailable, p.Reason)
	}
	return ErrDoctorUnavailable
}
