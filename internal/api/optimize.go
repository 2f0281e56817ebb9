package api

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/chocosentinel/internal/apierr"
	"github.com/aristath/chocosentinel/internal/scoring"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

// projectedWeather builds a 24h weather proxy for timestamps with no
// forecast of their own (C8 only forecasts price): each hour reuses the
// most recent observed reading at the same hour-of-day over the last
// week, falling back to the single latest known reading when there is no
// same-hour history. This is a deliberate simplification, documented as
// an open decision, since the system has no weather-forecasting model.
func (s *Server) projectedWeather(ctx context.Context, timestamps []time.Time) ([]scoring.WeatherPoint, error) {
	end := time.Now().UTC()
	start := end.Add(-7 * 24 * time.Hour)
	points, err := s.store.Range(ctx, "weather_data", timeseries.TagFilter{}, start, end)
	if err != nil {
		return nil, err
	}

	byHourOfDay := make(map[int]struct{ temp, hum float64 })
	var lastTemp, lastHum float64
	var lastSeen time.Time
	haveLast := false
	for _, p := range points {
		temp, okT := p.Fields["temperature"]
		hum, okH := p.Fields["humidity"]
		if !okT || !okH {
			continue
		}
		byHourOfDay[p.Time.UTC().Hour()] = struct{ temp, hum float64 }{temp, hum}
		if !haveLast || p.Time.After(lastSeen) {
			lastTemp, lastHum = temp, hum
			lastSeen = p.Time
			haveLast = true
		}
	}

	out := make([]scoring.WeatherPoint, len(timestamps))
	for i, ts := range timestamps {
		if v, ok := byHourOfDay[ts.UTC().Hour()]; ok {
			out[i] = scoring.WeatherPoint{Time: ts, TemperatureC: v.temp, HumidityPct: v.hum}
			continue
		}
		out[i] = scoring.WeatherPoint{Time: ts, TemperatureC: lastTemp, HumidityPct: lastHum}
	}
	return out, nil
}

// planDaily builds the 24h plan shared by the HTTP handler and the
// scheduler's hourly optimization job.
func (s *Server) planDaily(ctx context.Context) (scoring.DayPlan, error) {
	model, _ := s.currentForecaster()
	regressor, classifier := s.currentScoringArtifacts()
	if model == nil || regressor == nil || classifier == nil {
		return scoring.DayPlan{}, apierr.New(apierr.KindModelNotTrained, "price forecaster and scoring models must be trained before planning, POST /predict/prices/train and /predict/train first")
	}

	preds, err := model.Forecast(time.Now().UTC(), 24)
	if err != nil {
		return scoring.DayPlan{}, apierr.Wrap(apierr.KindForecastHorizonRange, "invalid forecast horizon", err)
	}

	timestamps := make([]time.Time, len(preds))
	for i, p := range preds {
		timestamps[i] = p.Timestamp
	}
	weather, err := s.projectedWeather(ctx, timestamps)
	if err != nil {
		return scoring.DayPlan{}, err
	}

	return scoring.PlanDay(preds, weather, s.spec, s.cal, regressor, classifier)
}

func (s *Server) handleOptimizeDaily(w http.ResponseWriter, r *http.Request) {
	plan, err := s.planDaily(r.Context())
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timeline":              plan.Hours,
		"aggregate_savings_eur": plan.AggregateSavingsEUR,
	})
}

// RunHourlyOptimization recomputes the daily plan and logs its aggregate
// savings, keeping a warm, auditable trail of what the plan would have
// recommended even when no client polls /optimize/production/daily. It is
// a no-op, not an error, when models aren't trained yet.
func (s *Server) RunHourlyOptimization(ctx context.Context) error {
	plan, err := s.planDaily(ctx)
	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.KindModelNotTrained {
			s.log.Debug().Msg("skipping hourly optimization, models not trained yet")
			return nil
		}
		return err
	}
	s.log.Info().Float64("aggregate_savings_eur", plan.AggregateSavingsEUR).Int("hours", len(plan.Hours)).Msg("hourly optimization plan computed")
	return nil
}
