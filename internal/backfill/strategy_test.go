package backfill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectWeatherStrategy_FutureGapUsesForecast(t *testing.T) {
	now := time.Now()
	assert.Equal(t, strategyForecast, selectWeatherStrategy(now, now.Add(24*time.Hour), now))
}

func TestSelectWeatherStrategy_WithinFortyEightHoursUsesForecast(t *testing.T) {
	now := time.Now()
	assert.Equal(t, strategyForecast, selectWeatherStrategy(now, now.Add(-24*time.Hour), now.Add(-30*time.Hour)))
}

func TestSelectWeatherStrategy_OldLongGapUsesClimatology(t *testing.T) {
	now := time.Now()
	gapEnd := now.Add(-80 * time.Hour)
	gapStart := gapEnd.Add(-80 * time.Hour)
	assert.Equal(t, strategyClimatology, selectWeatherStrategy(now, gapEnd, gapStart))
}

func TestSelectWeatherStrategy_IntermediateUsesObservation(t *testing.T) {
	now := time.Now()
	gapEnd := now.Add(-60 * time.Hour)
	gapStart := gapEnd.Add(-1 * time.Hour)
	assert.Equal(t, strategyObservation, selectWeatherStrategy(now, gapEnd, gapStart))
}

func TestSelectWeatherStrategy_PreviousMonthFallsBackToCSV(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	gapEnd := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	gapStart := gapEnd.Add(-1 * time.Hour)
	// age ~44 days, duration 1h: misses the climatology row (needs duration
	// >= 72h) and the 48h forecast row, lands on the month-mismatch CSV row.
	assert.Equal(t, strategyHistoricalCSV, selectWeatherStrategy(now, gapEnd, gapStart))
}
