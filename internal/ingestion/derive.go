package ingestion

import (
	"math"
	"time"

	"github.com/aristath/chocosentinel/internal/calendar"
)

// comfortOptimalTempC and comfortOptimalHumidityPct are the generic
// industrial comfort band used to tag weather_data at ingestion time,
// independent of any specific machinery process (the scoring package
// recomputes a process-specific thermal/humidity efficiency against the
// active machinery spec at plan time — this index is a cheap, always-on
// signal attached to every weather point as it lands).
const (
	comfortOptimalTempC     = 20.0
	comfortOptimalHumidityPct = 55.0
)

func priceTags(cal *calendar.Calendar, t time.Time, provider, marketType, dataSource string) map[string]string {
	return map[string]string{
		"provider":      provider,
		"market_type":   marketType,
		"tariff_period": string(cal.TariffPeriodAt(t)),
		"day_type":      string(cal.DayType(t)),
		"season":        cal.Season(t),
		"data_source":   dataSource,
	}
}

func priceFields(priceEurMWh float64) map[string]float64 {
	return map[string]float64{
		"price_eur_mwh": priceEurMWh,
		"price_eur_kwh": priceEurMWh / 1000,
	}
}

func weatherTags(stationID, dataSource, dataType string) map[string]string {
	return map[string]string{
		"station_id":  stationID,
		"data_source": dataSource,
		"data_type":   dataType,
	}
}

// historicalTags matches the historical bucket's narrower siar_weather tag
// set: station_id and a fixed data_source, no data_type.
func historicalTags(stationID string) map[string]string {
	return map[string]string{
		"station_id":  stationID,
		"data_source": "historical_csv",
	}
}

// withDerivedWeatherFields adds heat_index and production_comfort_index on
// top of whatever raw fields a client supplied, when temperature and
// humidity are both present.
func withDerivedWeatherFields(fields map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	temp, hasTemp := out["temperature"]
	humidity, hasHumidity := out["humidity"]
	if hasTemp && hasHumidity {
		out["heat_index"] = heatIndexCelsius(temp, humidity)
		out["production_comfort_index"] = productionComfortIndex(temp, humidity)
	}
	return out
}

// heatIndexCelsius applies the NWS Rothfusz regression (defined in
// Fahrenheit) and converts back to Celsius. When the average of the air
// temperature and Steadman's simple formula is below 80F (about 27C), that
// average is returned instead of the full regression, matching the NWS's
// own guidance.
func heatIndexCelsius(tempC, humidityPct float64) float64 {
	tempF := tempC*9/5 + 32
	simple := 0.5 * (tempF + 61.0 + (tempF-68.0)*1.2 + humidityPct*0.094)
	avgF := (tempF + simple) / 2
	if avgF < 80 {
		return (avgF - 32) * 5 / 9
	}

	hiF := -42.379 +
		2.04901523*tempF +
		10.14333127*humidityPct -
		0.22475541*tempF*humidityPct -
		0.00683783*tempF*tempF -
		0.05481717*humidityPct*humidityPct +
		0.00122874*tempF*tempF*humidityPct +
		0.00085282*tempF*humidityPct*humidityPct -
		0.00000199*tempF*tempF*humidityPct*humidityPct

	return (hiF - 32) * 5 / 9
}

// productionComfortIndex scores 0-100 how close conditions are to the
// generic comfort band, reusing the same efficiency shape the scoring
// package later applies per-process.
func productionComfortIndex(tempC, humidityPct float64) float64 {
	thermal := math.Max(0, 100-5*math.Abs(tempC-comfortOptimalTempC))
	humidity := math.Max(0, 100-2*math.Abs(humidityPct-comfortOptimalHumidityPct))
	return 0.6*thermal + 0.4*humidity
}
