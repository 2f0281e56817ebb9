package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/forecast/price"
	"github.com/aristath/chocosentinel/internal/machinery"
)

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	c, err := calendar.New("Europe/Madrid", zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestThermalEfficiency_PeaksAtOptimalAndDecaysLinearly(t *testing.T) {
	assert.InDelta(t, 100.0, ThermalEfficiency(22, 22), 0.001)
	assert.InDelta(t, 90.0, ThermalEfficiency(24, 22), 0.001)
	assert.Equal(t, 0.0, ThermalEfficiency(50, 22))
}

func TestHumidityEfficiency_PeaksAtOptimalAndDecaysLinearly(t *testing.T) {
	assert.InDelta(t, 100.0, HumidityEfficiency(55, 55), 0.001)
	assert.InDelta(t, 90.0, HumidityEfficiency(60, 55), 0.001)
}

func TestClassifyFromSuitability_BinsAtThresholds(t *testing.T) {
	assert.Equal(t, ClassOptimal, ClassifyFromSuitability(90))
	assert.Equal(t, ClassModerate, ClassifyFromSuitability(60))
	assert.Equal(t, ClassReduced, ClassifyFromSuitability(40))
	assert.Equal(t, ClassHalt, ClassifyFromSuitability(10))
}

func syntheticSamples(cal *calendar.Calendar, n int, forTarget func(Features) float64) []Sample {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		price := 0.05 + 0.2*float64(i%24)/24.0
		temp := 15 + 10*float64((i*7)%24)/24.0
		humidity := 40 + 20*float64((i*13)%24)/24.0
		f := BuildFeatures(t, price, temp, humidity, 40, 22, 55, price/0.25, cal)
		samples[i] = Sample{Features: f, Target: forTarget(f)}
	}
	return samples
}

func TestTrainEnergyScoreRegressor_FitsFormulaDerivedTarget(t *testing.T) {
	cal := testCalendar(t)
	samples := syntheticSamples(cal, 200, EnergyScore)

	rng := rand.New(rand.NewSource(1))
	regressor, err := TrainEnergyScoreRegressor(samples, rng)
	require.NoError(t, err)
	assert.Greater(t, regressor.Metrics.TestScore, 0.5)
}

func TestTrainEnergyScoreRegressor_RejectsTooFewSamples(t *testing.T) {
	cal := testCalendar(t)
	samples := syntheticSamples(cal, 5, EnergyScore)
	_, err := TrainEnergyScoreRegressor(samples, nil)
	assert.Error(t, err)
}

func TestTrainProductionClassifier_FitsFormulaDerivedLabels(t *testing.T) {
	cal := testCalendar(t)
	samples := syntheticSamples(cal, 200, Suitability)

	rng := rand.New(rand.NewSource(1))
	classifier, err := TrainProductionClassifier(samples, rng)
	require.NoError(t, err)
	assert.Greater(t, classifier.Metrics.TestScore, 0.5)
}

func TestPlanDay_ProducesPositiveSavingsWithPeakVsValleyPrices(t *testing.T) {
	cal := testCalendar(t)
	spec := machinery.DummySpec()

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // Monday
	prices := make([]price.Prediction, 24)
	weather := make([]WeatherPoint, 24)
	for h := 0; h < 24; h++ {
		ts := start.Add(time.Duration(h) * time.Hour)
		p := 0.15
		switch {
		case h >= 1 && h <= 5:
			p = 0.05
		case h >= 18 && h <= 21:
			p = 0.30
		}
		prices[h] = price.Prediction{Timestamp: ts, Yhat: p, YhatLower: p - 0.01, YhatUpper: p + 0.01}
		weather[h] = WeatherPoint{Time: ts, TemperatureC: 22, HumidityPct: 55}
	}

	samples := syntheticSamples(cal, 300, EnergyScore)
	regressor, err := TrainEnergyScoreRegressor(samples, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	classSamples := syntheticSamples(cal, 300, Suitability)
	classifier, err := TrainProductionClassifier(classSamples, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	plan, err := PlanDay(prices, weather, spec, cal, regressor, classifier)
	require.NoError(t, err)
	require.Len(t, plan.Hours, 24)

	for h := 1; h <= 5; h++ {
		assert.Equal(t, ClassOptimal, plan.Hours[h].ProductionClass, "hour %d should be optimal at valley price", h)
	}
	for h := 18; h <= 21; h++ {
		assert.NotEqual(t, ClassOptimal, plan.Hours[h].ProductionClass, "hour %d should not be optimal at peak price", h)
	}
	assert.Greater(t, plan.AggregateSavingsEUR, 0.0)
}

func TestPlanDay_RejectsWrongLengthInputs(t *testing.T) {
	cal := testCalendar(t)
	spec := machinery.DummySpec()
	samples := syntheticSamples(cal, 50, EnergyScore)
	regressor, err := TrainEnergyScoreRegressor(samples, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	classSamples := syntheticSamples(cal, 50, Suitability)
	classifier, err := TrainProductionClassifier(classSamples, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	_, err = PlanDay(nil, nil, spec, cal, regressor, classifier)
	assert.Error(t, err)
}

func TestPriceNormalizer_ScalesIntoUnitRange(t *testing.T) {
	n := NewPriceNormalizer([]float64{0.05, 0.15, 0.30})
	assert.InDelta(t, 0.0, n.Normalize(0.05), 0.001)
	assert.InDelta(t, 1.0, n.Normalize(0.30), 0.001)
	assert.InDelta(t, 0.4, n.Normalize(0.15), 0.02)
}
