package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-12-01 is a Monday.
var monday = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *MemoryRepository
	resolver *Resolver
	guard    *ConflictGuard
	schedule *ScheduleService
	bookings *BookingService
	doctor   Doctor
	patient  Patient
}

func newFixture(t *testing.T, opts ResolverOptions) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	resolver := NewResolver(repo, opts)
	guard := NewConflictGuard(repo, NewInProcessLocker(), resolver)

	f := &fixture{
		repo:     repo,
		resolver: resolver,
		guard:    guard,
		schedule: NewScheduleService(repo),
		bookings: NewBookingService(repo, guard, resolver, nil, nil),
		doctor:   Doctor{ID: uuid.New(), Name: "Dr. Adams"},
		patient:  Patient{ID: uuid.New(), Name: "Pat Jones"},
	}
	repo.AddDoctor(f.doctor)
	repo.AddPatient(f.patient)
	return f
}

func (f *fixture) addRule(t *testing.T, weekday time.Weekday, start, end string) WeeklyRule {
	t.Helper()
	startMin, err := ParseClock(start)
	require.NoError(t, err)
	endMin, err := ParseClock(end)
	require.NoError(t, err)

	rule := WeeklyRule{
		DoctorID:    f.doctor.ID,
		Weekday:     weekday,
		StartMinute: startMin,
		EndMinute:   endMin,
		Active:      true,
	}
	require.NoError(t, f.schedule.UpsertRule(context.Background(), &rule))
	return rule
}

func (f *fixture) book(t *testing.T, start time.Time, duration int) *Booking {
	t.Helper()
	b, err := f.bookings.Create(context.Background(), CreateBookingRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		Kind:            KindAppointment,
		StartAt:         start,
		DurationMinutes: duration,
	})
	require.NoError(t, err)
	return b
}

func slotClocks(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartAt.Format("15:04"))
	}
	return out
}

func resolve(t *testing.T, f *fixture, date time.Time, duration int) []Slot {
	t.Helper()
	slots, _, err := f.bookings.ResolveSlots(context.Background(), ResolveRequest{
		DoctorID:        f.doctor.ID,
		Date:            date,
		DurationMinutes: duration,
		Now:             monday.AddDate(0, 0, -7), // well before the target day
	})
	require.NoError(t, err)
	return slots
}

func TestResolveSlots(t *testing.T) {
	t.Run("no rules yields no slots", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		slots := resolve(t, f, monday, 30)
		assert.Empty(t, slots)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		_, _, err := f.bookings.ResolveSlots(context.Background(), ResolveRequest{
			DoctorID: uuid.New(),
			Date:     monday,
			Now:      monday.AddDate(0, 0, -7),
		})
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("candidate count matches floor((e-s-d)/g)+1", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")

		// 180-minute window, 30-minute step and duration: (180-30)/30+1 = 6.
		slots := resolve(t, f, monday, 30)
		assert.Len(t, slots, 6)

		// 60-minute duration, still 30-minute steps: (180-60)/30+1 = 5.
		slots = resolve(t, f, monday, 60)
		assert.Len(t, slots, 5)
	})

	t.Run("scenario: one booking at 10:00 splits the morning", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")
		f.book(t, monday.Add(10*time.Hour), 30)

		slots := resolve(t, f, monday, 30)
		assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, slotClocks(slots))
	})

	t.Run("unavailability period wins over rules", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		xmas := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
		f.addRule(t, xmas.Weekday(), "09:00", "12:00")

		end := time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC)
		require.NoError(t, f.schedule.CreatePeriod(context.Background(), &UnavailabilityPeriod{
			DoctorID:  f.doctor.ID,
			StartDate: time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC),
			EndDate:   &end,
			Reason:    "annual leave",
		}))

		slots, period, err := f.bookings.ResolveSlots(context.Background(), ResolveRequest{
			DoctorID: f.doctor.ID,
			Date:     xmas,
			Now:      monday,
		})
		require.NoError(t, err)
		assert.Empty(t, slots)
		require.NotNil(t, period)
		assert.Equal(t, "annual leave", period.Reason)
	})

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")
		f.book(t, monday.Add(9*time.Hour+30*time.Minute), 30)

		req := ResolveRequest{
			DoctorID: f.doctor.ID,
			Date:     monday,
			Now:      monday.Add(-48 * time.Hour),
		}
		first, _, err := f.bookings.ResolveSlots(context.Background(), req)
		require.NoError(t, err)
		second, _, err := f.bookings.ResolveSlots(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("same-day resolution drops past starts", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")

		slots, _, err := f.bookings.ResolveSlots(context.Background(), ResolveRequest{
			DoctorID: f.doctor.ID,
			Date:     monday,
			Now:      monday.Add(10 * time.Hour), // 10:00 on the same Monday
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"10:30", "11:00", "11:30"}, slotClocks(slots))
	})

	t.Run("rule shorter than duration contributes nothing", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "09:20")
		slots := resolve(t, f, monday, 30)
		assert.Empty(t, slots)
	})

	t.Run("split shifts enumerate both windows in order", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "14:00", "15:00")
		f.addRule(t, time.Monday, "09:00", "10:00")

		slots := resolve(t, f, monday, 30)
		assert.Equal(t, []string{"09:00", "09:30", "14:00", "14:30"}, slotClocks(slots))
	})

	t.Run("overlapping historical intervals do not break resolution", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "11:00")

		// Write overlapping occupied rows directly into the store, as bad
		// historical data would appear. The insert guard would reject these.
		for _, start := range []time.Time{
			monday.Add(9 * time.Hour),
			monday.Add(9*time.Hour + 15*time.Minute),
		} {
			id := uuid.New()
			f.repo.bookings[id] = Booking{
				ID:              id,
				DoctorID:        f.doctor.ID,
				PatientID:       f.patient.ID,
				Kind:            KindAppointment,
				StartAt:         start,
				DurationMinutes: 30,
				Status:          StatusScheduled,
			}
		}

		slots := resolve(t, f, monday, 30)
		assert.Equal(t, []string{"10:00", "10:30"}, slotClocks(slots))
	})

	t.Run("allow-unconfigured flag opens the whole day", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{AllowUnconfigured: true})
		slots := resolve(t, f, monday, 30)
		// 1440-minute day: (1440-30)/30+1 = 48 candidates.
		assert.Len(t, slots, 48)
	})
}

func TestIsDateBlocked(t *testing.T) {
	now := monday.AddDate(0, 0, -7)

	t.Run("blocked when no rules", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		blocked, err := f.bookings.IsDateBlocked(context.Background(), f.doctor.ID, monday, now)
		require.NoError(t, err)
		assert.True(t, blocked)
	})

	t.Run("open when a rule has free capacity", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")
		blocked, err := f.bookings.IsDateBlocked(context.Background(), f.doctor.ID, monday, now)
		require.NoError(t, err)
		assert.False(t, blocked)
	})

	t.Run("blocked by an unavailability period", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")
		require.NoError(t, f.schedule.CreatePeriod(context.Background(), &UnavailabilityPeriod{
			DoctorID:  f.doctor.ID,
			StartDate: monday,
		}))
		blocked, err := f.bookings.IsDateBlocked(context.Background(), f.doctor.ID, monday, now)
		require.NoError(t, err)
		assert.True(t, blocked)
	})
}
