package api

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/chocosentinel/internal/apierr"
	"github.com/aristath/chocosentinel/internal/forecast/price"
	"github.com/aristath/chocosentinel/internal/machinery"
	"github.com/aristath/chocosentinel/internal/scoring"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

// trainingWindow is how far back predict/*/train looks for history. Both
// the price forecaster and the scoring artifacts are retrained against the
// same window so their views of "recent conditions" stay consistent.
const trainingWindow = 60 * 24 * time.Hour

// TrainPrices retrains the price forecaster from recent store history and
// publishes the resulting artifact. It backs both the HTTP training
// endpoint and the scheduler's periodic retraining job.
func (s *Server) TrainPrices(ctx context.Context) (*price.Model, error) {
	end := time.Now().UTC()
	start := end.Add(-trainingWindow)

	model, err := price.TrainFromStore(ctx, s.store, "energy_prices", s.cal, start, end, s.log)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.forecaster = model
	s.priceTrainedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.reg != nil {
		data, err := model.MarshalArtifact()
		if err != nil {
			s.log.Error().Err(err).Msg("failed to marshal price forecaster artifact")
		} else {
			metrics := model.Metrics()
			metricsMap := map[string]float64{"mae": metrics.MAE, "rmse": metrics.RMSE, "r2": metrics.R2, "coverage_95": metrics.Coverage95}
			if _, err := publishArtifact(ctx, s.reg, s.mirror, "price_forecaster", "msgpack", data, metricsMap); err != nil {
				s.log.Error().Err(err).Msg("failed to publish price forecaster artifact")
			}
		}
	}
	return model, nil
}

func (s *Server) handleTrainPrices(w http.ResponseWriter, r *http.Request) {
	model, err := s.TrainPrices(r.Context())
	if err != nil {
		s.writeAPIError(w, apierr.Wrap(apierr.KindValidationError, "price forecaster training failed", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"metrics": model.Metrics()})
}

func (s *Server) currentForecaster() (*price.Model, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forecaster, s.priceTrainedAt
}

func (s *Server) handleWeeklyForecast(w http.ResponseWriter, r *http.Request) {
	s.serveForecast(w, r, 168)
}

func (s *Server) handleHourlyForecast(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			hours = n
		}
	}
	s.serveForecast(w, r, hours)
}

func (s *Server) serveForecast(w http.ResponseWriter, r *http.Request, hours int) {
	model, _ := s.currentForecaster()
	if model == nil {
		s.writeAPIError(w, apierr.New(apierr.KindModelNotTrained, "price forecaster has not been trained yet, POST /predict/prices/train first"))
		return
	}
	preds, err := model.Forecast(time.Now().UTC(), hours)
	if err != nil {
		s.writeAPIError(w, apierr.Wrap(apierr.KindForecastHorizonRange, "invalid forecast horizon", err))
		return
	}
	s.writeJSON(w, http.StatusOK, preds)
}

func (s *Server) handlePriceStatus(w http.ResponseWriter, r *http.Request) {
	model, trainedAt := s.currentForecaster()
	if model == nil {
		s.writeAPIError(w, apierr.New(apierr.KindModelNotTrained, "price forecaster has not been trained yet"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":       model.Metrics(),
		"window":        model.Window(),
		"last_training": trainedAt,
	})
}

// trainingSamples joins recent price and weather history by hour and
// labels each joined hour with its formula-derived target, the same
// approach internal/scoring's own tests use to produce trainable samples
// in the absence of a ground-truth production log.
func (s *Server) trainingSamples(ctx context.Context, target func(scoring.Features) float64) ([]scoring.Sample, error) {
	end := time.Now().UTC()
	start := end.Add(-trainingWindow)

	pricePoints, err := s.store.Range(ctx, "energy_prices", timeseries.TagFilter{}, start, end)
	if err != nil {
		return nil, err
	}
	weatherPoints, err := s.store.Range(ctx, "weather_data", timeseries.TagFilter{}, start, end)
	if err != nil {
		return nil, err
	}

	byHour := make(map[time.Time]struct {
		price      float64
		hasPrice   bool
		temp, hum  float64
		hasWeather bool
	})
	for _, p := range pricePoints {
		key := p.Time.UTC().Truncate(time.Hour)
		v, ok := p.Fields["price_eur_kwh"]
		if !ok {
			continue
		}
		entry := byHour[key]
		entry.price = v
		entry.hasPrice = true
		byHour[key] = entry
	}
	for _, p := range weatherPoints {
		key := p.Time.UTC().Truncate(time.Hour)
		temp, okTemp := p.Fields["temperature"]
		hum, okHum := p.Fields["humidity"]
		if !okTemp || !okHum {
			continue
		}
		entry := byHour[key]
		entry.temp = temp
		entry.hum = hum
		entry.hasWeather = true
		byHour[key] = entry
	}

	var prices []float64
	for _, v := range byHour {
		if v.hasPrice {
			prices = append(prices, v.price)
		}
	}
	if len(prices) < 20 {
		return nil, fmt.Errorf("not enough joined price/weather history to train: %d hours", len(prices))
	}
	normalizer := scoring.NewPriceNormalizer(prices)

	var samples []scoring.Sample
	for hour, v := range byHour {
		if !v.hasPrice || !v.hasWeather {
			continue
		}
		process, active := s.spec.PrimaryAt(s.cal.LocalHour(hour))
		optimalTemp, optimalHumidity, powerKW := 20.0, 55.0, 0.0
		if active {
			optimalTemp, optimalHumidity, powerKW = process.OptimalTempC, process.OptimalHumidityPct, process.PowerKW
		}
		f := scoring.BuildFeatures(hour, v.price, v.temp, v.hum, powerKW, optimalTemp, optimalHumidity, normalizer.Normalize(v.price), s.cal)
		samples = append(samples, scoring.Sample{Features: f, Target: target(f)})
	}
	if len(samples) < 20 {
		return nil, fmt.Errorf("not enough joined price/weather history to train: %d samples", len(samples))
	}
	return samples, nil
}

// TrainScoring retrains both the energy score regressor and the production
// classifier from recent joined price/weather history and publishes the
// resulting artifacts. It backs both the HTTP training endpoint and the
// scheduler's periodic retraining job.
func (s *Server) TrainScoring(ctx context.Context) (*scoring.EnergyScoreRegressor, *scoring.ProductionClassifier, error) {
	regressorSamples, err := s.trainingSamples(ctx, scoring.EnergyScore)
	if err != nil {
		return nil, nil, err
	}
	classifierSamples, err := s.trainingSamples(ctx, scoring.Suitability)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	regressor, err := scoring.TrainEnergyScoreRegressor(regressorSamples, rng)
	if err != nil {
		return nil, nil, err
	}
	classifier, err := scoring.TrainProductionClassifier(classifierSamples, rng)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.regressor = regressor
	s.classifier = classifier
	s.scoringTrainedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.reg != nil {
		if data, err := regressor.MarshalArtifact(); err == nil {
			_, _ = publishArtifact(ctx, s.reg, s.mirror, "energy_score_regressor", "msgpack", data, map[string]float64{
				"train_r2": regressor.Metrics.TrainScore, "test_r2": regressor.Metrics.TestScore, "cv_r2": regressor.Metrics.CVScore,
			})
		}
		if data, err := classifier.MarshalArtifact(); err == nil {
			_, _ = publishArtifact(ctx, s.reg, s.mirror, "production_classifier", "msgpack", data, map[string]float64{
				"train_accuracy": classifier.Metrics.TrainScore, "test_accuracy": classifier.Metrics.TestScore, "cv_accuracy": classifier.Metrics.CVScore,
			})
		}
	}
	return regressor, classifier, nil
}

func (s *Server) handleTrainScoring(w http.ResponseWriter, r *http.Request) {
	regressor, classifier, err := s.TrainScoring(r.Context())
	if err != nil {
		s.writeAPIError(w, apierr.Wrap(apierr.KindValidationError, "scoring training failed", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"r2_train":       regressor.Metrics.TrainScore,
		"r2_test":        regressor.Metrics.TestScore,
		"accuracy_train": classifier.Metrics.TrainScore,
		"accuracy_test":  classifier.Metrics.TestScore,
		"cv": map[string]float64{
			"energy_score_regressor": regressor.Metrics.CVScore,
			"production_classifier":  classifier.Metrics.CVScore,
		},
	})
}

type singleHourRequest struct {
	PriceEURKWh float64 `json:"price_eur_kwh"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// singleHourRange brackets the plausible wholesale price range used to
// normalize an ad hoc single-hour request that has no surrounding window
// to normalize against; it spans, with margin on both sides, the
// 0.05-0.30 EUR/kWh prices the scoring package's own tests use.
var singleHourRange = [2]float64{0.02, 0.40}

func (s *Server) singleHourFeatures(req singleHourRequest) scoring.Features {
	now := time.Now().UTC()
	normalizer := scoring.NewPriceNormalizer(singleHourRange[:])
	process, active := s.spec.PrimaryAt(s.cal.LocalHour(now))
	optimalTemp, optimalHumidity, powerKW := 20.0, 55.0, 0.0
	if active {
		optimalTemp, optimalHumidity, powerKW = process.OptimalTempC, process.OptimalHumidityPct, process.PowerKW
	}
	return scoring.BuildFeatures(now, req.PriceEURKWh, req.Temperature, req.Humidity, powerKW, optimalTemp, optimalHumidity, normalizer.Normalize(req.PriceEURKWh), s.cal)
}

func (s *Server) currentScoringArtifacts() (*scoring.EnergyScoreRegressor, *scoring.ProductionClassifier) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regressor, s.classifier
}

func (s *Server) handleEnergyOptimization(w http.ResponseWriter, r *http.Request) {
	var req singleHourRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAPIError(w, apierr.Wrap(apierr.KindValidationError, "invalid request body", err))
		return
	}
	regressor, _ := s.currentScoringArtifacts()
	if regressor == nil {
		s.writeAPIError(w, apierr.New(apierr.KindModelNotTrained, "energy score regressor has not been trained yet, POST /predict/train first"))
		return
	}

	f := s.singleHourFeatures(req)
	score := regressor.Predict(f)

	recommendation := "maintain normal production"
	switch {
	case score >= 75:
		recommendation = "favorable conditions, consider increasing throughput"
	case score < 35:
		recommendation = "unfavorable conditions, consider reducing load"
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"energy_optimization_score": score,
		"features_used":             f,
		"recommendation":            recommendation,
	})
}

func (s *Server) handleProductionRecommendation(w http.ResponseWriter, r *http.Request) {
	var req singleHourRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAPIError(w, apierr.Wrap(apierr.KindValidationError, "invalid request body", err))
		return
	}
	_, classifier := s.currentScoringArtifacts()
	if classifier == nil {
		s.writeAPIError(w, apierr.New(apierr.KindModelNotTrained, "production classifier has not been trained yet, POST /predict/train first"))
		return
	}

	f := s.singleHourFeatures(req)
	class := classifier.Predict(f)
	confidence := classifier.Metrics.TestScore

	reasoning := fmt.Sprintf(
		"thermal_efficiency=%.1f humidity_efficiency=%.1f price_norm=%.2f tariff_period_bonus=%.2f",
		f.MachineThermalEfficiency, f.MachineHumidityEfficiency, f.PriceNorm, f.TariffBonus,
	)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"recommendation": class,
		"confidence":     confidence,
		"reasoning":      reasoning,
	})
}

// seedArtifacts lets test code in this package seed trained artifacts
// without going through the HTTP training endpoints.
func (s *Server) seedArtifacts(m *price.Model, reg *scoring.EnergyScoreRegressor, cls *scoring.ProductionClassifier, spec *machinery.Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecaster = m
	s.regressor = reg
	s.classifier = cls
	if spec != nil {
		s.spec = spec
	}
}
