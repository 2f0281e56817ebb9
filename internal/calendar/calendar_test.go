package calendar

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalendar(t *testing.T) *Calendar {
	t.Helper()
	c, err := New("Europe/Madrid", zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestIsHoliday_NewYearsDay(t *testing.T) {
	c := newTestCalendar(t)
	assert.True(t, c.IsHoliday(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.False(t, c.IsHoliday(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)))
}

func TestDayType_WeekendOverridesPlainWeekday(t *testing.T) {
	c := newTestCalendar(t)
	// 2026-01-03 is a Saturday
	assert.Equal(t, DayTypeWeekend, c.DayType(time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)))
}

func TestDayType_HolidayTakesPriority(t *testing.T) {
	c := newTestCalendar(t)
	assert.Equal(t, DayTypeHoliday, c.DayType(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func TestDayType_PlainWeekday(t *testing.T) {
	c := newTestCalendar(t)
	// 2026-01-05 is a Monday, not a holiday
	assert.Equal(t, DayTypeWeekday, c.DayType(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)))
}

func TestSeason(t *testing.T) {
	c := newTestCalendar(t)
	assert.Equal(t, "winter", c.Season(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "spring", c.Season(time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "summer", c.Season(time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "autumn", c.Season(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)))
}

func TestTariffPeriodAt_WeekendIsAlwaysP6(t *testing.T) {
	c := newTestCalendar(t)
	sat := time.Date(2026, 1, 3, 11, 0, 0, 0, time.UTC) // Madrid local ~noon, weekday-peak hour otherwise
	assert.Equal(t, P6, c.TariffPeriodAt(sat))
}

func TestTariffPeriodAt_HolidayIsAlwaysP6(t *testing.T) {
	c := newTestCalendar(t)
	holiday := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, P6, c.TariffPeriodAt(holiday))
}

func TestTariffPeriodAt_WinterWeekdayPunta(t *testing.T) {
	c := newTestCalendar(t)
	// 2026-01-05 Monday 11:00 Madrid (winter, in the 10-14 punta band), January => P1
	loc, _ := time.LoadLocation("Europe/Madrid")
	t1 := time.Date(2026, 1, 5, 11, 0, 0, 0, loc)
	assert.Equal(t, P1, c.TariffPeriodAt(t1))
	assert.True(t, c.IsPeakHour(t1))
}

func TestTariffPeriodAt_WinterWeekdayValle(t *testing.T) {
	c := newTestCalendar(t)
	loc, _ := time.LoadLocation("Europe/Madrid")
	t1 := time.Date(2026, 1, 5, 3, 0, 0, 0, loc)
	assert.Equal(t, P6, c.TariffPeriodAt(t1))
	assert.False(t, c.IsPeakHour(t1))
}

func TestTariffPeriodAt_WinterWeekdayLlano(t *testing.T) {
	c := newTestCalendar(t)
	loc, _ := time.LoadLocation("Europe/Madrid")
	t1 := time.Date(2026, 1, 5, 9, 0, 0, 0, loc)
	assert.Equal(t, P2, c.TariffPeriodAt(t1))
}
