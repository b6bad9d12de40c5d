package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 1440, false},
		{"24:01", 0, true},
		{"25:00", 0, true},
		{"09:60", 0, true},
		{"09:30xyz", 0, true},
		{"-1:00", 0, true},
		{"nine", 0, true},
		{"", 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseClock(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "09:05", FormatClock(545))
	assert.Equal(t, "23:30", FormatClock(1410))
}

func TestIntervalOverlaps(t *testing.T) {
	base := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	a := NewInterval(base, 30)

	t.Run("identical intervals overlap", func(t *testing.T) {
		assert.True(t, a.Overlaps(NewInterval(base, 30)))
	})

	t.Run("partial overlap", func(t *testing.T) {
		assert.True(t, a.Overlaps(NewInterval(base.Add(15*time.Minute), 30)))
		assert.True(t, a.Overlaps(NewInterval(base.Add(-15*time.Minute), 30)))
	})

	t.Run("containment", func(t *testing.T) {
		assert.True(t, a.Overlaps(NewInterval(base.Add(10*time.Minute), 10)))
		assert.True(t, NewInterval(base.Add(10*time.Minute), 10).Overlaps(a))
	})

	t.Run("touching endpoints do not overlap", func(t *testing.T) {
		assert.False(t, a.Overlaps(NewInterval(base.Add(30*time.Minute), 30)))
		assert.False(t, a.Overlaps(NewInterval(base.Add(-30*time.Minute), 30)))
	})
}

func TestPeriodCovers(t *testing.T) {
	day := time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)

	t.Run("without end date only the start day counts", func(t *testing.T) {
		p := UnavailabilityPeriod{StartDate: day}
		assert.True(t, p.Covers(day))
		assert.False(t, p.Covers(day.AddDate(0, 0, 1)))
		assert.False(t, p.Covers(day.AddDate(0, 0, -1)))
	})

	t.Run("with end date the range is inclusive", func(t *testing.T) {
		end := day.AddDate(0, 0, 2)
		p := UnavailabilityPeriod{StartDate: day, EndDate: &end}
		assert.True(t, p.Covers(day))
		assert.True(t, p.Covers(day.AddDate(0, 0, 1)))
		assert.True(t, p.Covers(end))
		assert.False(t, p.Covers(end.AddDate(0, 0, 1)))
	})
}

func TestBookingStatus(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusPostponed.Terminal())

	assert.True(t, StatusPostponed.ValidFor(KindSurgery))
	assert.False(t, StatusPostponed.ValidFor(KindAppointment))
	assert.True(t, StatusScheduled.ValidFor(KindAppointment))
}

func TestDateOf(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	// 23:30 UTC on July 1st is already July 2nd in Madrid.
	instant := time.Date(2025, 7, 1, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 7, 2, 0, 0, 0, 0, loc), DateOf(instant, loc))
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), DateOf(instant, time.UTC))
}
