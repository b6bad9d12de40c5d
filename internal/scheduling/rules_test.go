package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertRule(t *testing.T) {
	t.Run("rejects end before start", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		err := f.schedule.UpsertRule(context.Background(), &WeeklyRule{
			DoctorID:    f.doctor.ID,
			Weekday:     time.Monday,
			StartMinute: 12 * 60,
			EndMinute:   9 * 60,
			Active:      true,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects zero-length window", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		err := f.schedule.UpsertRule(context.Background(), &WeeklyRule{
			DoctorID:    f.doctor.ID,
			Weekday:     time.Monday,
			StartMinute: 9 * 60,
			EndMinute:   9 * 60,
			Active:      true,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects out-of-range weekday", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		err := f.schedule.UpsertRule(context.Background(), &WeeklyRule{
			DoctorID:    f.doctor.ID,
			Weekday:     time.Weekday(7),
			StartMinute: 9 * 60,
			EndMinute:   12 * 60,
			Active:      true,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects overlap with another active rule", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")

		err := f.schedule.UpsertRule(context.Background(), &WeeklyRule{
			DoctorID:    f.doctor.ID,
			Weekday:     time.Monday,
			StartMinute: 11 * 60,
			EndMinute:   14 * 60,
			Active:      true,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("adjacent windows are allowed", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")
		f.addRule(t, time.Monday, "12:00", "15:00")

		rules, err := f.schedule.ListRules(context.Background(), f.doctor.ID)
		require.NoError(t, err)
		assert.Len(t, rules, 2)
	})

	t.Run("same window on another weekday is allowed", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		f.addRule(t, time.Monday, "09:00", "12:00")
		f.addRule(t, time.Tuesday, "09:00", "12:00")
	})

	t.Run("updating a rule does not collide with itself", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		rule := f.addRule(t, time.Monday, "09:00", "12:00")

		rule.EndMinute = 13 * 60
		assert.NoError(t, f.schedule.UpsertRule(context.Background(), &rule))
	})

	t.Run("inactive rules do not block new ones", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		rule := f.addRule(t, time.Monday, "09:00", "12:00")
		require.NoError(t, f.schedule.DeactivateRule(context.Background(), rule.ID))

		f.addRule(t, time.Monday, "10:00", "13:00")
	})

	t.Run("unknown doctor", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		err := f.schedule.UpsertRule(context.Background(), &WeeklyRule{
			DoctorID:    uuid.New(),
			Weekday:     time.Monday,
			StartMinute: 9 * 60,
			EndMinute:   12 * 60,
			Active:      true,
		})
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})
}

func TestDeactivateRule(t *testing.T) {
	t.Run("deactivated rules stop producing slots", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		rule := f.addRule(t, time.Monday, "09:00", "12:00")

		require.NotEmpty(t, resolve(t, f, monday, 30))
		require.NoError(t, f.schedule.DeactivateRule(context.Background(), rule.ID))
		assert.Empty(t, resolve(t, f, monday, 30))
	})

	t.Run("unknown rule", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		err := f.schedule.DeactivateRule(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrRuleNotFound)
	})
}

func TestUnavailabilityPeriods(t *testing.T) {
	t.Run("rejects end before start", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		end := monday.AddDate(0, 0, -1)
		err := f.schedule.CreatePeriod(context.Background(), &UnavailabilityPeriod{
			DoctorID:  f.doctor.ID,
			StartDate: monday,
			EndDate:   &end,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("single-day period covers only its day", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		require.NoError(t, f.schedule.CreatePeriod(context.Background(), &UnavailabilityPeriod{
			DoctorID:  f.doctor.ID,
			StartDate: monday,
			Reason:    "day off",
		}))

		blocked, period, err := f.schedule.IsUnavailable(context.Background(), f.doctor.ID, monday)
		require.NoError(t, err)
		assert.True(t, blocked)
		require.NotNil(t, period)
		assert.Equal(t, "day off", period.Reason)

		blocked, _, err = f.schedule.IsUnavailable(context.Background(), f.doctor.ID, monday.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.False(t, blocked)
	})

	t.Run("range covers both endpoints inclusive", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		end := monday.AddDate(0, 0, 2)
		require.NoError(t, f.schedule.CreatePeriod(context.Background(), &UnavailabilityPeriod{
			DoctorID:  f.doctor.ID,
			StartDate: monday,
			EndDate:   &end,
		}))

		for d := 0; d <= 2; d++ {
			blocked, _, err := f.schedule.IsUnavailable(context.Background(), f.doctor.ID, monday.AddDate(0, 0, d))
			require.NoError(t, err)
			assert.True(t, blocked, "day %d should be blocked", d)
		}
		blocked, _, err := f.schedule.IsUnavailable(context.Background(), f.doctor.ID, monday.AddDate(0, 0, 3))
		require.NoError(t, err)
		assert.False(t, blocked)
	})

	t.Run("deleted periods free the dates", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		period := UnavailabilityPeriod{DoctorID: f.doctor.ID, StartDate: monday}
		require.NoError(t, f.schedule.CreatePeriod(context.Background(), &period))

		require.NoError(t, f.schedule.DeletePeriod(context.Background(), period.ID))

		blocked, _, err := f.schedule.IsUnavailable(context.Background(), f.doctor.ID, monday)
		require.NoError(t, err)
		assert.False(t, blocked)
	})

	t.Run("update validates like create", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		period := UnavailabilityPeriod{DoctorID: f.doctor.ID, StartDate: monday}
		require.NoError(t, f.schedule.CreatePeriod(context.Background(), &period))

		bad := period
		end := monday.AddDate(0, 0, -5)
		bad.EndDate = &end
		assert.ErrorIs(t, f.schedule.UpdatePeriod(context.Background(), &bad), ErrValidation)
	})

	t.Run("delete unknown period", func(t *testing.T) {
		f := newFixture(t, ResolverOptions{})
		err := f.schedule.DeletePeriod(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrPeriodNotFound)
	})
}
