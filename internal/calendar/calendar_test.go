package calendar_test

import (
	"testing"
	"time"

	"leavedesk/internal/calendar"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWorkingDays(t *testing.T) {
	t.Run("full week monday to friday", func(t *testing.T) {
		// 2024-03-04 is a Monday
		days, err := calendar.WorkingDays(date(2024, 3, 4), date(2024, 3, 8))
		assert.NoError(t, err)
		assert.Equal(t, 5, days)
	})

	t.Run("single working day", func(t *testing.T) {
		days, err := calendar.WorkingDays(date(2024, 3, 6), date(2024, 3, 6))
		assert.NoError(t, err)
		assert.Equal(t, 1, days)
	})

	t.Run("weekend only yields zero", func(t *testing.T) {
		// 2024-03-09 is a Saturday
		days, err := calendar.WorkingDays(date(2024, 3, 9), date(2024, 3, 10))
		assert.NoError(t, err)
		assert.Equal(t, 0, days)
	})

	t.Run("span including weekend", func(t *testing.T) {
		// Friday through Monday counts only Friday and Monday
		days, err := calendar.WorkingDays(date(2024, 3, 8), date(2024, 3, 11))
		assert.NoError(t, err)
		assert.Equal(t, 2, days)
	})

	t.Run("full calendar year 2024", func(t *testing.T) {
		days, err := calendar.WorkingDays(date(2024, 1, 1), date(2024, 12, 31))
		assert.NoError(t, err)
		assert.Equal(t, 262, days)
	})

	t.Run("negative end before start", func(t *testing.T) {
		_, err := calendar.WorkingDays(date(2024, 3, 8), date(2024, 3, 4))
		assert.ErrorIs(t, err, calendar.ErrInvalidRange)
	})

	t.Run("ignores time of day", func(t *testing.T) {
		start := time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
		end := time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC)
		days, err := calendar.WorkingDays(start, end)
		assert.NoError(t, err)
		assert.Equal(t, 1, days)
	})
}

func TestYearBounds(t *testing.T) {
	first, last := calendar.YearBounds(2024)
	assert.Equal(t, date(2024, 1, 1), first)
	assert.Equal(t, date(2024, 12, 31), last)
}

func TestClipToYear(t *testing.T) {
	t.Run("range inside year untouched", func(t *testing.T) {
		s, e := calendar.ClipToYear(date(2024, 3, 4), date(2024, 3, 8), 2024)
		assert.Equal(t, date(2024, 3, 4), s)
		assert.Equal(t, date(2024, 3, 8), e)
	})

	t.Run("range spanning year boundary is clamped", func(t *testing.T) {
		s, e := calendar.ClipToYear(date(2023, 12, 27), date(2024, 1, 5), 2024)
		assert.Equal(t, date(2024, 1, 1), s)
		assert.Equal(t, date(2024, 1, 5), e)

		s, e = calendar.ClipToYear(date(2023, 12, 27), date(2024, 1, 5), 2023)
		assert.Equal(t, date(2023, 12, 27), s)
		assert.Equal(t, date(2023, 12, 31), e)
	})
}
