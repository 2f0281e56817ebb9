package api

import (
	"net/http"
	"time"

	"github.com/aristath/chocosentinel/internal/scoring"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

// latestFields fetches the newest point for a measurement and flattens its
// fields into a plain map, returning ok=false when nothing has landed yet.
func (s *Server) latestFields(r *http.Request, measurement string) (map[string]float64, time.Time, bool) {
	ts, found, err := s.store.LastTimestamp(r.Context(), measurement, timeseries.TagFilter{})
	if err != nil || !found {
		return nil, time.Time{}, false
	}
	points, err := s.store.Range(r.Context(), measurement, timeseries.TagFilter{}, ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil || len(points) == 0 {
		return nil, ts, false
	}
	return points[len(points)-1].Fields, ts, true
}

// handleDashboardComplete assembles the single-call view the operator UI
// polls: current readings, the price forecast, today's production plan,
// and a snapshot of the supporting subsystems. Each section degrades
// independently (e.g. an untrained model just omits "plan") rather than
// failing the whole request.
func (s *Server) handleDashboardComplete(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{}

	current := map[string]interface{}{}
	if price, ts, ok := s.latestFields(r, "energy_prices"); ok {
		current["price"] = map[string]interface{}{"fields": price, "as_of": ts}
	}
	if weather, ts, ok := s.latestFields(r, "weather_data"); ok {
		current["weather"] = map[string]interface{}{"fields": weather, "as_of": ts}
	}
	out["current"] = current

	if model, trainedAt := s.currentForecaster(); model != nil {
		if preds, err := model.Forecast(time.Now().UTC(), 168); err == nil {
			out["forecast"] = preds
		}
		out["price_model"] = map[string]interface{}{"last_training": trainedAt, "metrics": model.Metrics()}
	}

	regressor, classifier := s.currentScoringArtifacts()
	if model, _ := s.currentForecaster(); model != nil && regressor != nil && classifier != nil {
		if preds, err := model.Forecast(time.Now().UTC(), 24); err == nil {
			timestamps := make([]time.Time, len(preds))
			for i, p := range preds {
				timestamps[i] = p.Timestamp
			}
			if weather, err := s.projectedWeather(r.Context(), timestamps); err == nil {
				if plan, err := scoring.PlanDay(preds, weather, s.spec, s.cal, regressor, classifier); err == nil {
					out["plan"] = plan.Hours
					out["plan_savings_eur"] = plan.AggregateSavingsEUR
				}
			}
		}
	}

	if s.spec != nil {
		out["siar_context"] = map[string]interface{}{"processes": s.spec.Processes}
	}

	out["system"] = map[string]interface{}{
		"build": s.build,
	}

	s.writeJSON(w, http.StatusOK, out)
}
