package price

import (
	"math"
	"time"

	"github.com/aristath/chocosentinel/internal/calendar"
)

const (
	hoursPerDay  = 24.0
	hoursPerWeek = 24.0 * 7.0
	hoursPerYear = 24.0 * 365.25

	dailyHarmonics  = 3
	weeklyHarmonics = 2
	yearlyHarmonics = 2
)

// featureNames lists every design-matrix column in the order buildRow
// produces them, used for artifact introspection and /predict/prices/status.
var featureNames = buildFeatureNames()

func buildFeatureNames() []string {
	names := []string{"intercept", "trend"}
	names = append(names, harmonicNames("daily", dailyHarmonics)...)
	names = append(names, harmonicNames("weekly", weeklyHarmonics)...)
	names = append(names, harmonicNames("yearly", yearlyHarmonics)...)
	names = append(names, "is_peak_hour", "is_weekend", "is_holiday")
	return names
}

func harmonicNames(label string, n int) []string {
	var names []string
	for h := 1; h <= n; h++ {
		names = append(names, label+"_sin"+itoa(h), label+"_cos"+itoa(h))
	}
	return names
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// buildRow constructs one design-matrix row for timestamp t, with
// elapsedHours since the model's training epoch supplying the trend term.
func buildRow(t time.Time, elapsedHours float64, cal *calendar.Calendar) []float64 {
	row := make([]float64, 0, len(featureNames))
	row = append(row, 1.0, elapsedHours)
	row = append(row, harmonicTerms(elapsedHours, hoursPerDay, dailyHarmonics)...)
	row = append(row, harmonicTerms(elapsedHours, hoursPerWeek, weeklyHarmonics)...)
	row = append(row, harmonicTerms(elapsedHours, hoursPerYear, yearlyHarmonics)...)

	peak, weekend, holiday := 0.0, 0.0, 0.0
	if cal.IsPeakHour(t) {
		peak = 1.0
	}
	if cal.DayType(t) == calendar.DayTypeWeekend {
		weekend = 1.0
	}
	if cal.IsHoliday(t) {
		holiday = 1.0
	}
	row = append(row, peak, weekend, holiday)
	return row
}

func harmonicTerms(elapsedHours, period float64, harmonics int) []float64 {
	terms := make([]float64, 0, harmonics*2)
	for h := 1; h <= harmonics; h++ {
		angle := 2 * math.Pi * float64(h) * elapsedHours / period
		terms = append(terms, math.Sin(angle), math.Cos(angle))
	}
	return terms
}
