package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ResolverOptions tune slot resolution. Zero values fall back to the
// documented defaults.
type ResolverOptions struct {
	Location           *time.Location
	GranularityMinutes int // default 30

	// AllowUnconfigured treats a doctor with no active rules for a weekday
	// as available the whole day. Off by default: no rules means no slots.
	AllowUnconfigured bool
}

const DefaultGranularityMinutes = 30

// Resolver computes candidate booking slots. It is the read path only:
// it never writes, never locks, and is safe to call concurrently.
type Resolver struct {
	reader ScheduleReader
	opts   ResolverOptions
}

func NewResolver(reader ScheduleReader, opts ResolverOptions) *Resolver {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.GranularityMinutes <= 0 {
		opts.GranularityMinutes = DefaultGranularityMinutes
	}
	return &Resolver{reader: reader, opts: opts}
}

func (r *Resolver) Location() *time.Location { return r.opts.Location }

// ResolveRequest carries every input of a resolution, including the
// explicit Now. Identical requests always produce identical output.
type ResolveRequest struct {
	DoctorID           uuid.UUID
	Date               time.Time
	GranularityMinutes int // 0 means resolver default
	DurationMinutes    int // 0 means granularity
	Now                time.Time
}

// ResolveSlots returns the free slots for a doctor on one date. When the
// date is blocked by an unavailability period it returns an empty list and
// the matched period so callers can surface the reason.
func (r *Resolver) ResolveSlots(ctx context.Context, req ResolveRequest) ([]Slot, *UnavailabilityPeriod, error) {
	granularity := req.GranularityMinutes
	if granularity <= 0 {
		granularity = r.opts.GranularityMinutes
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = granularity
	}

	if _, err := r.reader.GetDoctorByID(ctx, req.DoctorID); err != nil {
		return nil, nil, err
	}

	day := DateOf(req.Date, r.opts.Location)

	period, err := r.reader.ActivePeriodCovering(ctx, req.DoctorID, day)
	if err != nil {
		return nil, nil, fmt.Errorf("check unavailability: %w", err)
	}
	if period != nil {
		return []Slot{}, period, nil
	}

	rules, err := r.activeRulesForDay(ctx, req.DoctorID, day.Weekday())
	if err != nil {
		return nil, nil, err
	}
	if len(rules) == 0 {
		return []Slot{}, nil, nil
	}

	occupied, err := r.reader.OccupiedIntervals(ctx, req.DoctorID, day, day.AddDate(0, 0, 1), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load occupied intervals: %w", err)
	}

	slots := enumerateSlots(rules, occupied, day, granularity, duration, req.Now, r.opts.Location)
	return slots, nil, nil
}

func (r *Resolver) activeRulesForDay(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]WeeklyRule, error) {
	rules, err := r.reader.ActiveRules(ctx, doctorID, weekday)
	if err != nil {
		return nil, fmt.Errorf("load availability rules: %w", err)
	}
	if len(rules) == 0 && r.opts.AllowUnconfigured {
		rules = []WeeklyRule{{
			DoctorID:    doctorID,
			Weekday:     weekday,
			StartMinute: 0,
			EndMinute:   minutesPerDay,
			Active:      true,
		}}
	}
	return rules, nil
}

// enumerateSlots is the pure core: given already-fetched rules and occupied
// intervals it walks each rule window at granularity steps and keeps the
// starts whose [start, start+duration) touches no occupied interval.
// Overlapping occupied intervals from bad historical data are subtracted
// as-is rather than validated.
func enumerateSlots(rules []WeeklyRule, occupied []Interval, day time.Time, granularity, duration int, now time.Time, loc *time.Location) []Slot {
	sameDay := DateOf(now, loc).Equal(day)

	slots := make([]Slot, 0)
	for _, rule := range rules {
		for m := rule.StartMinute; m+duration <= rule.EndMinute; m += granularity {
			start := day.Add(time.Duration(m) * time.Minute)
			if sameDay && !start.After(now) {
				continue
			}
			candidate := NewInterval(start, duration)
			if overlapsAny(candidate, occupied) {
				continue
			}
			slots = append(slots, Slot{StartAt: start, DurationMinutes: duration})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartAt.Before(slots[j].StartAt)
	})
	return slots
}

func overlapsAny(candidate Interval, occupied []Interval) bool {
	for _, o := range occupied {
		if candidate.Overlaps(o) {
			return true
		}
	}
	return false
}

// coveredByRules reports whether [startMinute, startMinute+duration] fits
// entirely inside a single rule window. Bookings never span windows.
func coveredByRules(rules []WeeklyRule, startMinute, duration int) bool {
	for _, rule := range rules {
		if startMinute >= rule.StartMinute && startMinute+duration <= rule.EndMinute {
			return true
		}
	}
	return false
}
