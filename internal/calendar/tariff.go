package calendar

import "time"

// TariffPeriod is one of the six PVPC periods used for industrial
// (6.1TD-shaped) consumers. P1 is the most expensive peak period, P6 the
// cheapest valley period.
type TariffPeriod string

const (
	P1 TariffPeriod = "P1"
	P2 TariffPeriod = "P2"
	P3 TariffPeriod = "P3"
	P4 TariffPeriod = "P4"
	P5 TariffPeriod = "P5"
	P6 TariffPeriod = "P6"
)

// hourBand classifies an hour of day into punta (peak), llano (flat), or
// valle (valley) for a given month, following the winter/summer clock
// shift the official periodization uses.
type hourBand int

const (
	bandPunta hourBand = iota
	bandLlano
	bandValle
)

func isWinterClock(month time.Month) bool {
	switch month {
	case time.October, time.November, time.December, time.January, time.February, time.March:
		return true
	default:
		return false
	}
}

func bandForHour(month time.Month, hour int) hourBand {
	if isWinterClock(month) {
		switch {
		case (hour >= 10 && hour < 14) || (hour >= 18 && hour < 22):
			return bandPunta
		case hour >= 8 && hour < 24:
			return bandLlano
		default:
			return bandValle
		}
	}
	switch {
	case (hour >= 11 && hour < 15) || (hour >= 19 && hour < 23):
		return bandPunta
	case hour >= 8 && hour < 24:
		return bandLlano
	default:
		return bandValle
	}
}

// monthPeriods maps a month to its {punta, llano} period pair. Valle hours
// and every weekend/holiday hour always resolve to P6.
var monthPeriods = map[time.Month][2]TariffPeriod{
	time.January:   {P1, P2},
	time.February:  {P1, P2},
	time.March:     {P2, P3},
	time.April:     {P3, P4},
	time.May:       {P3, P4},
	time.June:      {P2, P3},
	time.July:      {P1, P2},
	time.August:    {P4, P5},
	time.September: {P2, P3},
	time.October:   {P2, P3},
	time.November:  {P1, P2},
	time.December:  {P1, P2},
}

// TariffPeriodAt returns the PVPC tariff period applicable at t in the
// calendar's time zone.
func (c *Calendar) TariffPeriodAt(t time.Time) TariffPeriod {
	local := t.In(c.loc)

	if c.DayType(t) != DayTypeWeekday {
		return P6
	}

	band := bandForHour(local.Month(), local.Hour())
	if band == bandValle {
		return P6
	}

	periods := monthPeriods[local.Month()]
	if band == bandPunta {
		return periods[0]
	}
	return periods[1]
}

// IsPeakHour reports whether t falls in tariff period P1, the regressor
// the price forecaster conditions on (§4.8).
func (c *Calendar) IsPeakHour(t time.Time) bool {
	return c.TariffPeriodAt(t) == P1
}
