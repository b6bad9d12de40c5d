package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScheduleService administers weekly availability rules and unavailability
// periods. Rules are soft-deactivated to preserve history; periods are
// doctor-entered exceptions and may be hard-deleted.
type ScheduleService struct {
	repo Repository
}

func NewScheduleService(repo Repository) *ScheduleService {
	return &ScheduleService{repo: repo}
}

// UpsertRule validates and stores a weekly rule. An active rule must not
// overlap another active rule for the same doctor and weekday; the rule
// being updated is excluded from its own overlap check.
func (s *ScheduleService) UpsertRule(ctx context.Context, rule *WeeklyRule) error {
	if rule.Weekday < time.Sunday || rule.Weekday > time.Saturday {
		return validationErr("weekday must be in [0,6], got %d", rule.Weekday)
	}
	if rule.StartMinute < 0 || rule.EndMinute > minutesPerDay {
		return validationErr("rule window must lie within 00:00-24:00")
	}
	if rule.EndMinute <= rule.StartMinute {
		return validationErr("end_time must be after start_time")
	}
	if _, err := s.repo.GetDoctorByID(ctx, rule.DoctorID); err != nil {
		return err
	}

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	if rule.Active {
		existing, err := s.repo.ActiveRules(ctx, rule.DoctorID, rule.Weekday)
		if err != nil {
			return fmt.Errorf("load active rules: %w", err)
		}
		for _, other := range existing {
			if other.ID == rule.ID {
				continue
			}
			if rule.OverlapsRule(other) {
				return validationErr("rule %s-%s overlaps active rule %s-%s",
					FormatClock(rule.StartMinute), FormatClock(rule.EndMinute),
					FormatClock(other.StartMinute), FormatClock(other.EndMinute))
			}
		}
	}

	return s.repo.UpsertRule(ctx, rule)
}

// DeactivateRule soft-disables a rule. Past bookings made under it stay
// untouched.
func (s *ScheduleService) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeactivateRule(ctx, id)
}

func (s *ScheduleService) ListRules(ctx context.Context, doctorID uuid.UUID) ([]WeeklyRule, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListRules(ctx, doctorID)
}

func (s *ScheduleService) validatePeriod(ctx context.Context, p *UnavailabilityPeriod) error {
	if p.StartDate.IsZero() {
		return validationErr("start_date is required")
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return validationErr("end_date must not be before start_date")
	}
	if _, err := s.repo.GetDoctorByID(ctx, p.DoctorID); err != nil {
		return err
	}
	return nil
}

func (s *ScheduleService) CreatePeriod(ctx context.Context, p *UnavailabilityPeriod) error {
	if err := s.validatePeriod(ctx, p); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Active = true
	return s.repo.CreatePeriod(ctx, p)
}

func (s *ScheduleService) UpdatePeriod(ctx context.Context, p *UnavailabilityPeriod) error {
	if err := s.validatePeriod(ctx, p); err != nil {
		return err
	}
	return s.repo.UpdatePeriod(ctx, p)
}

func (s *ScheduleService) GetPeriod(ctx context.Context, id uuid.UUID) (*UnavailabilityPeriod, error) {
	return s.repo.GetPeriodByID(ctx, id)
}

func (s *ScheduleService) DeletePeriod(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeletePeriod(ctx, id)
}

func (s *ScheduleService) ListPeriods(ctx context.Context, doctorID uuid.UUID) ([]UnavailabilityPeriod, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListPeriods(ctx, doctorID)
}

// IsUnavailable reports whether an active period covers date, returning
// the matching period for display.
func (s *ScheduleService) IsUnavailable(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, *UnavailabilityPeriod, error) {
	period, err := s.repo.ActivePeriodCovering(ctx, doctorID, date)
	if err != nil {
		return false, nil, err
	}
	return period != nil, period, nil
}
