package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/chocosentinel/internal/apierr"
	"github.com/aristath/chocosentinel/internal/backfill"
	"github.com/aristath/chocosentinel/internal/gaps"
)

// summaryStaleThreshold is the default staleness threshold /gaps/summary
// flags as action_needed, matching the acceptance tests' 6h auto-backfill
// trigger value.
const summaryStaleThreshold = 6 * time.Hour

func seriesFreshness(found bool, latest time.Time) map[string]interface{} {
	if !found {
		return map[string]interface{}{"gap_hours": nil, "stale": true}
	}
	gapHours := time.Since(latest).Hours()
	return map[string]interface{}{
		"last_point": latest,
		"gap_hours":  gapHours,
		"stale":      time.Since(latest) > summaryStaleThreshold,
	}
}

func (s *Server) handleGapsSummary(w http.ResponseWriter, r *http.Request) {
	latest, err := s.detector.LatestTimestamps(r.Context(), nil, nil)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	priceSummary := seriesFreshness(latest.PriceFound, latest.Price)
	weatherSummary := seriesFreshness(latest.WeatherFound, latest.Weather)

	actionNeeded := priceSummary["stale"].(bool) || weatherSummary["stale"].(bool)
	suggested := "none"
	if actionNeeded {
		suggested = "POST /gaps/backfill/auto?max_gap_hours=6"
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"price":   priceSummary,
		"weather": weatherSummary,
		"recommendations": map[string]interface{}{
			"action_needed": actionNeeded,
			"suggested":     suggested,
		},
	})
}

func daysBackParam(r *http.Request, def int) int {
	v := r.URL.Query().Get("days_back")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func worstSeverity(gs []gaps.Gap) gaps.Severity {
	worst := gaps.Severity("")
	rank := map[gaps.Severity]int{gaps.SeverityMinor: 1, gaps.SeverityModerate: 2, gaps.SeverityCritical: 3}
	for _, g := range gs {
		if rank[g.Severity] > rank[worst] {
			worst = g.Severity
		}
	}
	return worst
}

func (s *Server) handleGapsDetect(w http.ResponseWriter, r *http.Request) {
	daysBack := daysBackParam(r, 7)
	lookback := time.Duration(daysBack) * 24 * time.Hour

	priceGaps, err := s.detector.Detect(r.Context(), "energy_prices", nil, time.Hour, lookback)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	weatherGaps, err := s.detector.Detect(r.Context(), "weather_data", nil, time.Hour, lookback)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	strategy := "monitor"
	if worstSeverity(priceGaps) == gaps.SeverityCritical || worstSeverity(weatherGaps) == gaps.SeverityCritical {
		strategy = "auto_backfill"
	} else if len(priceGaps) > 0 || len(weatherGaps) > 0 {
		strategy = "scheduled_backfill"
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": map[string]interface{}{
			"price_gap_count":   len(priceGaps),
			"weather_gap_count": len(weatherGaps),
			"days_back":         daysBack,
		},
		"price_gaps":           priceGaps,
		"weather_gaps":         weatherGaps,
		"recommended_strategy": strategy,
	})
}

// handleGapsBackfill kicks off a full intelligent backfill in the
// background and returns immediately; the run's outcome is only
// observable via logs and the next /gaps/summary poll.
func (s *Server) handleGapsBackfill(w http.ResponseWriter, r *http.Request) {
	daysBack := daysBackParam(r, 10)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.backfillSvc.ExecuteIntelligentBackfill(ctx, daysBack); err != nil {
			s.log.Error().Err(err).Int("days_back", daysBack).Msg("background backfill failed")
		}
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":          "executing_in_background",
		"days_processing": daysBack,
	})
}

func (s *Server) handleGapsBackfillAuto(w http.ResponseWriter, r *http.Request) {
	maxGapHours := 6
	if v := r.URL.Query().Get("max_gap_hours"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			maxGapHours = int(f)
		}
	}

	result, err := s.backfillSvc.CheckAndRun(r.Context(), maxGapHours)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	if result.Action == "no_action_needed" {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "no_action_needed"})
		return
	}
	s.writeJSON(w, http.StatusOK, result.Backfill)
}

type backfillRangeRequest struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DataSource string    `json:"data_source"`
}

func (s *Server) handleGapsBackfillRange(w http.ResponseWriter, r *http.Request) {
	var req backfillRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAPIError(w, apierr.Wrap(apierr.KindValidationError, "invalid request body", err))
		return
	}
	if !req.End.After(req.Start) {
		s.writeAPIError(w, apierr.New(apierr.KindValidationError, "end must be after start"))
		return
	}

	measurement := "energy_prices"
	if req.DataSource == "weather" {
		measurement = "weather_data"
	}
	gap := gaps.Gap{
		Measurement:   measurement,
		Start:         req.Start,
		End:           req.End,
		ExpectedCount: int(req.End.Sub(req.Start).Hours()),
	}

	successRate := func(res backfill.Result) float64 {
		if res.RecordsRequested == 0 {
			return 1
		}
		return float64(res.RecordsWritten) / float64(res.RecordsRequested)
	}

	var result interface{}
	switch req.DataSource {
	case "price":
		r := s.backfillSvc.BackfillPriceGap(r.Context(), gap)
		result = struct {
			Results            []interface{} `json:"results"`
			OverallSuccessRate float64       `json:"overall_success_rate"`
		}{Results: []interface{}{r}, OverallSuccessRate: successRate(r)}
	case "weather":
		res := s.backfillSvc.BackfillWeatherGap(r.Context(), gap)
		result = struct {
			Results            []interface{} `json:"results"`
			OverallSuccessRate float64       `json:"overall_success_rate"`
		}{Results: []interface{}{res}, OverallSuccessRate: successRate(res)}
	default:
		s.writeAPIError(w, apierr.New(apierr.KindValidationError, "data_source must be price or weather"))
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
