package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository used by tests
// and the contention simulator. Its overlap guards mirror the Postgres
// conditional inserts.
type MemoryRepository struct {
	mu       sync.RWMutex
	doctors  map[uuid.UUID]Doctor
	patients map[uuid.UUID]Patient
	services map[uuid.UUID]ServiceOffering
	rules    map[uuid.UUID]WeeklyRule
	periods  map[uuid.UUID]UnavailabilityPeriod
	bookings map[uuid.UUID]Booking
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:  make(map[uuid.UUID]Doctor),
		patients: make(map[uuid.UUID]Patient),
		services: make(map[uuid.UUID]ServiceOffering),
		rules:    make(map[uuid.UUID]WeeklyRule),
		periods:  make(map[uuid.UUID]UnavailabilityPeriod),
		bookings: make(map[uuid.UUID]Booking),
	}
}

func (r *MemoryRepository) AddDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) AddService(s ServiceOffering) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = s
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetServiceByID(_ context.Context, id uuid.UUID) (*ServiceOffering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) ActiveRules(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]WeeklyRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rules []WeeklyRule
	for _, rule := range r.rules {
		if rule.DoctorID == doctorID && rule.Weekday == weekday && rule.Active {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].StartMinute < rules[j].StartMinute })
	return rules, nil
}

func (r *MemoryRepository) ListRules(_ context.Context, doctorID uuid.UUID) ([]WeeklyRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rules []WeeklyRule
	for _, rule := range r.rules {
		if rule.DoctorID == doctorID {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		return rules[i].StartMinute < rules[j].StartMinute
	})
	return rules, nil
}

func (r *MemoryRepository) UpsertRule(_ context.Context, rule *WeeklyRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	stored := *rule
	if existing, ok := r.rules[rule.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.rules[rule.ID] = stored
	return nil
}

func (r *MemoryRepository) DeactivateRule(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return ErrRuleNotFound
	}
	rule.Active = false
	rule.UpdatedAt = time.Now()
	r.rules[id] = rule
	return nil
}

func (r *MemoryRepository) ActivePeriodCovering(_ context.Context, doctorID uuid.UUID, date time.Time) (*UnavailabilityPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var match *UnavailabilityPeriod
	for _, p := range r.periods {
		if p.DoctorID != doctorID || !p.Active || !p.Covers(date) {
			continue
		}
		if match == nil || p.StartDate.Before(match.StartDate) {
			cp := p
			match = &cp
		}
	}
	return match, nil
}

func (r *MemoryRepository) GetPeriodByID(_ context.Context, id uuid.UUID) (*UnavailabilityPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.periods[id]
	if !ok {
		return nil, ErrPeriodNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListPeriods(_ context.Context, doctorID uuid.UUID) ([]UnavailabilityPeriod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var periods []UnavailabilityPeriod
	for _, p := range r.periods {
		if p.DoctorID == doctorID {
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].StartDate.Before(periods[j].StartDate) })
	return periods, nil
}

func (r *MemoryRepository) CreatePeriod(_ context.Context, p *UnavailabilityPeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *p
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.periods[p.ID] = stored
	return nil
}

func (r *MemoryRepository) UpdatePeriod(_ context.Context, p *UnavailabilityPeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.periods[p.ID]
	if !ok {
		return ErrPeriodNotFound
	}
	stored := *p
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	r.periods[p.ID] = stored
	return nil
}

func (r *MemoryRepository) DeletePeriod(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.periods[id]; !ok {
		return ErrPeriodNotFound
	}
	delete(r.periods, id)
	return nil
}

func (r *MemoryRepository) OccupiedIntervals(_ context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]Interval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.occupiedLocked(doctorID, from, to, exclude), nil
}

func (r *MemoryRepository) occupiedLocked(doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) []Interval {
	window := Interval{Start: from, End: to}
	var intervals []Interval
	for _, b := range r.bookings {
		if b.DoctorID != doctorID || b.Status == StatusCancelled {
			continue
		}
		if exclude != nil && b.ID == *exclude {
			continue
		}
		if iv := b.Interval(); iv.Overlaps(window) {
			intervals = append(intervals, iv)
		}
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })
	return intervals
}

func (r *MemoryRepository) GetBookingByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (r *MemoryRepository) InsertBooking(_ context.Context, b *Booking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv := b.Interval()
	if len(r.occupiedLocked(b.DoctorID, iv.Start, iv.End, nil)) > 0 {
		return nil, ErrSlotUnavailable
	}
	stored := *b
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.bookings[b.ID] = stored
	out := stored
	return &out, nil
}

func (r *MemoryRepository) UpdateBookingStart(_ context.Context, id uuid.UUID, newStart time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status.Terminal() {
		return nil, ErrBookingTerminal
	}
	iv := NewInterval(newStart, b.DurationMinutes)
	if len(r.occupiedLocked(b.DoctorID, iv.Start, iv.End, &id)) > 0 {
		return nil, ErrSlotUnavailable
	}
	b.StartAt = newStart
	b.UpdatedAt = time.Now()
	r.bookings[id] = b
	return &b, nil
}

func (r *MemoryRepository) UpdateBookingStatus(_ context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	r.bookings[id] = b
	return &b, nil
}

func (r *MemoryRepository) CancelBooking(_ context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status.Terminal() {
		return nil, ErrBookingTerminal
	}
	b.Status = StatusCancelled
	b.UpdatedAt = time.Now()
	r.bookings[id] = b
	return &b, nil
}
