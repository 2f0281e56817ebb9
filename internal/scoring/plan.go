package scoring

import (
	"fmt"
	"time"

	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/forecast/price"
	"github.com/aristath/chocosentinel/internal/machinery"
)

// classPowerMultiplier is the fraction of nominal power a production class
// actually draws: Optimal hours run at full power, Halt hours draw
// nothing, Moderate/Reduced throttle in between. This is what lets
// PlanDay's aggregate savings reflect curtailing output in expensive
// hours rather than just relabeling a constant load.
var classPowerMultiplier = map[ProductionClass]float64{
	ClassOptimal:  1.0,
	ClassModerate: 0.75,
	ClassReduced:  0.4,
	ClassHalt:     0.0,
}

// WeatherPoint is the minimal forecast/observed weather input PlanDay
// needs for one hour.
type WeatherPoint struct {
	Time         time.Time
	TemperatureC float64
	HumidityPct  float64
}

// HourPlan is one hour of a DayPlan.
type HourPlan struct {
	Hour             int
	Timestamp        time.Time
	TariffPeriod     calendar.TariffPeriod
	PriceEURKWh      float64
	EnergyScore      float64
	ProductionClass  ProductionClass
	EstimatedCostEUR float64
	ActualCostEUR    float64
	BaselineCostEUR  float64
}

// DayPlan is the full 24-hour optimization plan PlanDay returns.
type DayPlan struct {
	Hours               []HourPlan
	AggregateSavingsEUR float64
	BaselineTotalEUR    float64
	ActualTotalEUR      float64
}

// PlanDay builds the 24-hour production plan: it pulls forecast prices and
// weather, determines the active process per hour, evaluates the energy
// score and production class, and returns the full timeline plus aggregate
// savings vs a flat-cost baseline (§4.9).
func PlanDay(prices []price.Prediction, weather []WeatherPoint, spec *machinery.Spec, cal *calendar.Calendar, regressor *EnergyScoreRegressor, classifier *ProductionClassifier) (DayPlan, error) {
	if len(prices) != 24 {
		return DayPlan{}, fmt.Errorf("scoring: PlanDay needs exactly 24 hourly price points, got %d", len(prices))
	}
	if len(weather) != 24 {
		return DayPlan{}, fmt.Errorf("scoring: PlanDay needs exactly 24 hourly weather points, got %d", len(weather))
	}

	rawPrices := make([]float64, 24)
	for i, p := range prices {
		rawPrices[i] = p.Yhat
	}
	normalizer := NewPriceNormalizer(rawPrices)
	meanPrice := mean(rawPrices)

	hours := make([]HourPlan, 24)
	var baselineTotal, actualTotal float64

	for i := 0; i < 24; i++ {
		t := prices[i].Timestamp
		hour := cal.LocalHour(t)

		process, active := spec.PrimaryAt(hour)
		optimalTemp, optimalHumidity, powerKW := 20.0, 55.0, 0.0
		if active {
			optimalTemp, optimalHumidity, powerKW = process.OptimalTempC, process.OptimalHumidityPct, process.PowerKW
		}

		priceNorm := normalizer.Normalize(rawPrices[i])
		f := BuildFeatures(t, rawPrices[i], weather[i].TemperatureC, weather[i].HumidityPct, powerKW, optimalTemp, optimalHumidity, priceNorm, cal)

		score := regressor.Predict(f)
		class := classifier.Predict(f)

		multiplier := classPowerMultiplier[class]
		actualCost := powerKW * multiplier * rawPrices[i]
		baselineCost := powerKW * meanPrice

		hours[i] = HourPlan{
			Hour:             hour,
			Timestamp:        t,
			TariffPeriod:     cal.TariffPeriodAt(t),
			PriceEURKWh:      rawPrices[i],
			EnergyScore:      score,
			ProductionClass:  class,
			EstimatedCostEUR: f.EstimatedCostEUR,
			ActualCostEUR:    actualCost,
			BaselineCostEUR:  baselineCost,
		}

		actualTotal += actualCost
		baselineTotal += baselineCost
	}

	return DayPlan{
		Hours:               hours,
		AggregateSavingsEUR: baselineTotal - actualTotal,
		BaselineTotalEUR:    baselineTotal,
		ActualTotalEUR:      actualTotal,
	}, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
