// Package calendar provides the Spanish public-holiday table and the
// derived day-type/season/tariff-period classification the ingestion
// service needs to tag points (C3). It generalizes the teacher's
// ExchangeCalendar holiday-table shape from trading-exchange holidays to
// a single national public holiday calendar.
package calendar

import (
	"time"

	"github.com/rs/zerolog"
)

// DayType classifies a calendar day for tariff purposes.
type DayType string

const (
	DayTypeWeekday DayType = "weekday"
	DayTypeWeekend DayType = "weekend"
	DayTypeHoliday DayType = "holiday"
)

// Spanish national public holidays, by year. Extend as new years are
// needed; regional/local holidays are out of scope (only national ones
// affect the PVPC day-type classification).
var nationalHolidays = map[int][]time.Time{
	2025: {
		date(2025, 1, 1), date(2025, 1, 6), date(2025, 4, 18),
		date(2025, 5, 1), date(2025, 8, 15), date(2025, 10, 12),
		date(2025, 11, 1), date(2025, 12, 6), date(2025, 12, 8),
		date(2025, 12, 25),
	},
	2026: {
		date(2026, 1, 1), date(2026, 1, 6), date(2026, 4, 3),
		date(2026, 5, 1), date(2026, 8, 15), date(2026, 10, 12),
		date(2026, 11, 1), date(2026, 12, 6), date(2026, 12, 8),
		date(2026, 12, 25),
	},
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Calendar resolves day types, seasons, and tariff periods for a fixed
// plant location and time zone.
type Calendar struct {
	loc *time.Location
	log zerolog.Logger
}

// New creates a Calendar operating in the given IANA time zone (e.g.
// "Europe/Madrid").
func New(timezone string, log zerolog.Logger) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Calendar{loc: loc, log: log.With().Str("component", "calendar").Logger()}, nil
}

// IsHoliday reports whether t's local calendar day is a Spanish national
// holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	local := t.In(c.loc)
	day := date(local.Year(), local.Month(), local.Day())
	for _, h := range nationalHolidays[local.Year()] {
		if h.Equal(day) {
			return true
		}
	}
	return false
}

// DayType classifies t's local calendar day.
func (c *Calendar) DayType(t time.Time) DayType {
	if c.IsHoliday(t) {
		return DayTypeHoliday
	}
	local := t.In(c.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return DayTypeWeekend
	}
	return DayTypeWeekday
}

// LocalHour returns t's hour of day in the calendar's time zone, the input
// the hybrid weather selector switches on.
func (c *Calendar) LocalHour(t time.Time) int {
	return t.In(c.loc).Hour()
}

// Season classifies t's local calendar month into the four PVPC-relevant
// meteorological seasons.
func (c *Calendar) Season(t time.Time) string {
	switch t.In(c.loc).Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}
