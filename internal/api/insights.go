package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/aristath/chocosentinel/internal/apierr"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

// windowResult is one ranked stretch of the weekly price forecast.
type windowResult struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	MeanPriceEURKWh float64   `json:"mean_price_eur_kwh"`
	SavingsVsAvgPct float64   `json:"savings_vs_average_pct"`
}

// handleOptimalWindows slides a fixed-length window across the 168h price
// forecast and ranks the cheapest stretches, the window length defaulting
// to the longest configured process duration since that's the block a
// real production run would need to fit into.
func (s *Server) handleOptimalWindows(w http.ResponseWriter, r *http.Request) {
	model, _ := s.currentForecaster()
	if model == nil {
		s.writeAPIError(w, apierr.New(apierr.KindModelNotTrained, "price forecaster has not been trained yet, POST /predict/prices/train first"))
		return
	}

	windowHours := s.defaultWindowHours()
	if v := r.URL.Query().Get("window_hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			windowHours = n
		}
	}
	topN := 5
	if v := r.URL.Query().Get("top_n"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topN = n
		}
	}

	preds, err := model.Forecast(time.Now().UTC(), 168)
	if err != nil {
		s.writeAPIError(w, apierr.Wrap(apierr.KindForecastHorizonRange, "invalid forecast horizon", err))
		return
	}
	if windowHours >= len(preds) {
		s.writeAPIError(w, apierr.New(apierr.KindValidationError, "window_hours must be smaller than the forecast horizon"))
		return
	}

	var overallSum float64
	for _, p := range preds {
		overallSum += p.Yhat
	}
	overallMean := overallSum / float64(len(preds))

	windows := make([]windowResult, 0, len(preds)-windowHours+1)
	for start := 0; start+windowHours <= len(preds); start++ {
		var sum float64
		for i := start; i < start+windowHours; i++ {
			sum += preds[i].Yhat
		}
		mean := sum / float64(windowHours)
		savingsPct := 0.0
		if overallMean != 0 {
			savingsPct = (overallMean - mean) / overallMean * 100
		}
		windows = append(windows, windowResult{
			Start:           preds[start].Timestamp,
			End:             preds[start+windowHours-1].Timestamp,
			MeanPriceEURKWh: mean,
			SavingsVsAvgPct: savingsPct,
		})
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].MeanPriceEURKWh < windows[j].MeanPriceEURKWh })
	if len(windows) > topN {
		windows = windows[:topN]
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"window_hours": windowHours,
		"windows":      windows,
	})
}

// defaultWindowHours picks the longest configured process duration,
// rounded up, or 4h when no machinery spec is wired.
func (s *Server) defaultWindowHours() int {
	if s.spec == nil {
		return 4
	}
	longest := 0.0
	for _, p := range s.spec.Processes {
		if p.DurationHours > longest {
			longest = p.DurationHours
		}
	}
	if longest <= 0 {
		return 4
	}
	hours := int(longest)
	if float64(hours) < longest {
		hours++
	}
	return hours
}

// processSavings is one process's estimated savings from running during
// its cheapest available hours instead of a flat-average hour.
type processSavings struct {
	Process        string  `json:"process"`
	ActiveHours    int     `json:"active_hours_per_day"`
	BaselineEURKWh float64 `json:"baseline_price_eur_kwh"`
	OptimalEURKWh  float64 `json:"optimal_price_eur_kwh"`
	DailyEUR       float64 `json:"daily_eur"`
}

// handleSavingsTracking approximates ROI from real price history rather
// than a persisted log of executed plans, which the system doesn't keep:
// for each process it compares the average price during its configured
// active hours against the average of the same number of cheapest hours
// (not necessarily contiguous) over the same lookback window.
func (s *Server) handleSavingsTracking(w http.ResponseWriter, r *http.Request) {
	lookbackDays := 7
	if v := r.URL.Query().Get("days_back"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lookbackDays = n
		}
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(lookbackDays) * 24 * time.Hour)
	points, err := s.store.Range(r.Context(), "energy_prices", timeseries.TagFilter{}, start, end)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	if len(points) == 0 {
		s.writeAPIError(w, apierr.New(apierr.KindValidationError, "no price history in the lookback window"))
		return
	}

	allPrices := make([]float64, 0, len(points))
	type hourPrice struct {
		t     time.Time
		price float64
	}
	hourly := make([]hourPrice, 0, len(points))
	for _, p := range points {
		v, ok := p.Fields["price_eur_kwh"]
		if !ok {
			continue
		}
		allPrices = append(allPrices, v)
		hourly = append(hourly, hourPrice{t: p.Time, price: v})
	}
	sort.Slice(allPrices, func(i, j int) bool { return allPrices[i] < allPrices[j] })

	var breakdown []processSavings
	var dailyTotal float64
	if s.spec != nil {
		for _, proc := range s.spec.Processes {
			activeHours := len(proc.ActiveHours)
			if activeHours == 0 || proc.PowerKW == 0 {
				continue
			}
			var baselineSum float64
			var baselineCount int
			for _, hp := range hourly {
				hour := s.cal.LocalHour(hp.t)
				for _, h := range proc.ActiveHours {
					if h == hour {
						baselineSum += hp.price
						baselineCount++
						break
					}
				}
			}
			if baselineCount == 0 {
				continue
			}
			baselineMean := baselineSum / float64(baselineCount)

			cheapestCount := activeHours * lookbackDays
			if cheapestCount > len(allPrices) {
				cheapestCount = len(allPrices)
			}
			var optimalSum float64
			for i := 0; i < cheapestCount; i++ {
				optimalSum += allPrices[i]
			}
			optimalMean := optimalSum / float64(cheapestCount)

			dailySavings := proc.PowerKW * (baselineMean - optimalMean) * float64(activeHours)
			dailyTotal += dailySavings

			breakdown = append(breakdown, processSavings{
				Process:        proc.Name,
				ActiveHours:    activeHours,
				BaselineEURKWh: baselineMean,
				OptimalEURKWh:  optimalMean,
				DailyEUR:       dailySavings,
			})
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"daily_eur":   dailyTotal,
		"monthly_eur": dailyTotal * 30,
		"annual_eur":  dailyTotal * 365,
		"breakdown":   breakdown,
		"lookback_days": lookbackDays,
	})
}
