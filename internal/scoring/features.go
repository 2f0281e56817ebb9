// Package scoring implements the C9 energy-score regressor, production-class
// classifier, and the hourly optimization plan that joins them with the
// price forecaster and the machinery spec.
package scoring

import (
	"time"

	"github.com/aristath/chocosentinel/internal/calendar"
)

// Features holds the 10 named inputs the regressor and classifier are
// trained on, plus the derived quantities computed from them.
type Features struct {
	PriceEURKWh              float64
	Hour                     int
	DayOfWeek                int
	Temperature              float64
	Humidity                 float64
	MachinePowerKW           float64
	MachineThermalEfficiency float64
	MachineHumidityEfficiency float64
	EstimatedCostEUR         float64
	TariffMultiplier         float64

	PriceNorm   float64
	TariffBonus float64
	IsValley    bool
}

// FeatureNames lists the 10 named features in the order Vector returns
// them.
var FeatureNames = []string{
	"price_eur_kwh", "hour", "day_of_week", "temperature", "humidity",
	"machine_power_kw", "machine_thermal_efficiency", "machine_humidity_efficiency",
	"estimated_cost_eur", "tariff_multiplier",
}

// Vector returns the 10 named features as a float64 slice, in FeatureNames
// order, for use in a design matrix row.
func (f Features) Vector() []float64 {
	return []float64{
		f.PriceEURKWh,
		float64(f.Hour),
		float64(f.DayOfWeek),
		f.Temperature,
		f.Humidity,
		f.MachinePowerKW,
		f.MachineThermalEfficiency,
		f.MachineHumidityEfficiency,
		f.EstimatedCostEUR,
		f.TariffMultiplier,
	}
}

// tariffMultiplier maps a tariff period to the cost multiplier used both as
// a feature and to compute TariffBonus/IsValley.
func tariffMultiplier(period calendar.TariffPeriod) float64 {
	switch period {
	case calendar.P1:
		return 1.3
	case calendar.P2:
		return 1.1
	case calendar.P3:
		return 1.0
	case calendar.P4:
		return 0.9
	case calendar.P5:
		return 0.8
	default: // P6, valley
		return 0.7
	}
}

// isValleyPeriod reports whether period is the cheapest (valley) band. The
// teacher's tariff table reserves P6 for nights/weekends/holidays, the
// valley band the spec's "multiplicative boost" applies to.
func isValleyPeriod(period calendar.TariffPeriod) bool {
	return period == calendar.P6
}

// ThermalEfficiency is max(0, 100 - 5*|T - T_opt|) (§4.9).
func ThermalEfficiency(temperature, optimalTempC float64) float64 {
	diff := temperature - optimalTempC
	if diff < 0 {
		diff = -diff
	}
	eff := 100 - 5*diff
	if eff < 0 {
		return 0
	}
	return eff
}

// HumidityEfficiency is max(0, 100 - 2*|H - H_opt|) (§4.9).
func HumidityEfficiency(humidity, optimalHumidityPct float64) float64 {
	diff := humidity - optimalHumidityPct
	if diff < 0 {
		diff = -diff
	}
	eff := 100 - 2*diff
	if eff < 0 {
		return 0
	}
	return eff
}

// BuildFeatures assembles one Features row for a given hour. priceNorm is
// supplied by the caller (PriceNormalizer), since it is defined relative to
// the training or planning window rather than a single observation.
func BuildFeatures(t time.Time, priceEURKWh, temperature, humidity, machinePowerKW, optimalTempC, optimalHumidityPct, priceNorm float64, cal *calendar.Calendar) Features {
	period := cal.TariffPeriodAt(t)
	mult := tariffMultiplier(period)
	thermalEff := ThermalEfficiency(temperature, optimalTempC)
	humidityEff := HumidityEfficiency(humidity, optimalHumidityPct)

	bonus := 0.0
	if isValleyPeriod(period) {
		bonus = 1.0
	}

	return Features{
		PriceEURKWh:               priceEURKWh,
		Hour:                      cal.LocalHour(t),
		DayOfWeek:                 int(t.In(time.UTC).Weekday()),
		Temperature:               temperature,
		Humidity:                  humidity,
		MachinePowerKW:            machinePowerKW,
		MachineThermalEfficiency:  thermalEff,
		MachineHumidityEfficiency: humidityEff,
		EstimatedCostEUR:          machinePowerKW * priceEURKWh,
		TariffMultiplier:          mult,
		PriceNorm:                 priceNorm,
		TariffBonus:               bonus,
		IsValley:                  isValleyPeriod(period),
	}
}

// EnergyScore computes s = 0.40*(1-price_norm) + 0.35*thermal_eff +
// 0.15*humidity_eff + 0.10*tariff_bonus, scaled so thermal/humidity
// efficiencies (0-100) and the [0,1] price/bonus terms combine into a
// single 0-100 score.
func EnergyScore(f Features) float64 {
	return 0.40*(1-f.PriceNorm)*100 + 0.35*f.MachineThermalEfficiency + 0.15*f.MachineHumidityEfficiency + 0.10*f.TariffBonus*100
}

// Suitability computes the binning score that ProductionClass classifies:
// 0.45*thermal_eff + 0.25*humidity_eff + 0.30*(1-price_norm), with a
// multiplicative boost during the valley tariff period.
func Suitability(f Features) float64 {
	s := 0.45*f.MachineThermalEfficiency + 0.25*f.MachineHumidityEfficiency + 0.30*(1-f.PriceNorm)*100
	if f.IsValley {
		s *= 1.15
	}
	if s > 100 {
		s = 100
	}
	return s
}

// ProductionClass is the classifier's output label.
type ProductionClass string

const (
	ClassOptimal  ProductionClass = "Optimal"
	ClassModerate ProductionClass = "Moderate"
	ClassReduced  ProductionClass = "Reduced"
	ClassHalt     ProductionClass = "Halt"
)

// ClassifyFromSuitability bins a suitability score at the 75/55/35
// thresholds (§4.9).
func ClassifyFromSuitability(suitability float64) ProductionClass {
	switch {
	case suitability >= 75:
		return ClassOptimal
	case suitability >= 55:
		return ClassModerate
	case suitability >= 35:
		return ClassReduced
	default:
		return ClassHalt
	}
}
