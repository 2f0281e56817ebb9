package backfill

import "time"

// weatherStrategy identifies which upstream/source a weather gap should be
// recovered from.
type weatherStrategy int

const (
	strategyForecast weatherStrategy = iota
	strategyClimatology
	strategyObservation
	strategyHistoricalCSV
)

// selectWeatherStrategy implements §4.5's ordered condition table — order
// is significant, first match wins, even though the "previous month/year"
// row overlaps the climatology row's age band (a row listed lower only
// fires when every row above it failed to match).
func selectWeatherStrategy(now, gapEnd, gapStart time.Time) weatherStrategy {
	gapAge := now.Sub(gapEnd)
	duration := gapEnd.Sub(gapStart)

	switch {
	case gapEnd.After(now) || gapAge <= 48*time.Hour:
		return strategyForecast
	case gapAge >= 72*time.Hour && duration >= 72*time.Hour:
		return strategyClimatology
	case gapAge > 48*time.Hour && gapAge < 72*time.Hour:
		return strategyObservation
	case gapStart.Year() != now.Year() || gapStart.Month() != now.Month():
		return strategyHistoricalCSV
	default:
		return strategyObservation
	}
}
