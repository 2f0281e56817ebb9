// Package price implements the C8 electricity-price forecaster: a seasonal
// additive regression over energy_prices.price_eur_kwh, trained with the
// tariff-calendar regressors the teacher's ExchangeCalendar-style helpers
// expose, and evaluated with gonum's stat package the way the teacher's
// pkg/formulas wraps it.
package price

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/chocosentinel/internal/calendar"
)

// emaSmoothingPeriod pre-smooths the training series before fitting, the
// same role talib.Ema plays in the teacher's indicator pipeline.
const emaSmoothingPeriod = 3

// holdoutFraction is the trailing share of the training window withheld
// for metric evaluation.
const holdoutFraction = 0.2

// acceptance thresholds, logged as warnings but never gating (open
// question: exported constants so the training job can report against
// them without duplicating the numbers).
const (
	AcceptableMAE        = 0.05
	AcceptableR2         = 0.4
	AcceptableCoverage95 = 0.85
)

// Observation is one (timestamp, price) training sample.
type Observation struct {
	Time  time.Time
	Price float64
}

// TrainingWindow records the span and size of the data a Model was fit on.
type TrainingWindow struct {
	Start time.Time
	End   time.Time
	N     int
}

// Metrics holds the holdout-set evaluation the training job reports
// alongside the model artifact.
type Metrics struct {
	MAE        float64
	RMSE       float64
	R2         float64
	Coverage95 float64
}

// Prediction is one forecast step with a 95% interval.
type Prediction struct {
	Timestamp time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
}

// Model is a fitted seasonal additive regression: intercept, linear trend,
// daily/weekly/yearly Fourier terms, and three tariff-calendar regressors.
type Model struct {
	cal          *calendar.Calendar
	epoch        time.Time
	coefficients []float64
	residualStd  float64
	window       TrainingWindow
	metrics      Metrics
}

// Window returns the span of data the model was trained on.
func (m *Model) Window() TrainingWindow { return m.window }

// Metrics returns the holdout-set evaluation computed at training time.
func (m *Model) Metrics() Metrics { return m.metrics }

// FeatureNames returns the design-matrix column order, for introspection.
func FeatureNames() []string { return append([]string(nil), featureNames...) }

// Train fits a Model to obs, ordered or not (Train sorts a copy by time).
// It pre-smooths the series with an EMA, fits ordinary least squares on
// the leading 1-holdoutFraction of the data, and evaluates MAE/RMSE/R2
// and 95%-interval coverage on the trailing holdout.
func Train(obs []Observation, cal *calendar.Calendar, log zerolog.Logger) (*Model, error) {
	if len(obs) < 10 {
		return nil, fmt.Errorf("price forecaster: need at least 10 observations, got %d", len(obs))
	}

	sorted := append([]Observation(nil), obs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	epoch := sorted[0].Time
	smoothed := smoothSeries(sorted)

	splitAt := int(float64(len(smoothed)) * (1 - holdoutFraction))
	if splitAt < 5 {
		splitAt = len(smoothed)
	}
	train := smoothed[:splitAt]
	test := smoothed[splitAt:]

	coeffs, residualStd, err := fitOLS(train, epoch, cal)
	if err != nil {
		return nil, fmt.Errorf("price forecaster: fit failed: %w", err)
	}

	m := &Model{
		cal:          cal,
		epoch:        epoch,
		coefficients: coeffs,
		residualStd:  residualStd,
		window: TrainingWindow{
			Start: sorted[0].Time,
			End:   sorted[len(sorted)-1].Time,
			N:     len(sorted),
		},
	}

	if len(test) > 0 {
		m.metrics = evaluate(m, test)
	} else {
		m.metrics = evaluate(m, train)
	}

	if m.metrics.MAE > AcceptableMAE || m.metrics.R2 < AcceptableR2 || m.metrics.Coverage95 < AcceptableCoverage95 {
		log.Warn().
			Float64("mae", m.metrics.MAE).
			Float64("r2", m.metrics.R2).
			Float64("coverage_95", m.metrics.Coverage95).
			Msg("price forecaster metrics below acceptance thresholds")
	}

	return m, nil
}

// smoothSeries applies an EMA to the price column and returns observations
// with the same timestamps and smoothed prices.
func smoothSeries(obs []Observation) []Observation {
	if len(obs) <= emaSmoothingPeriod {
		return obs
	}
	prices := make([]float64, len(obs))
	for i, o := range obs {
		prices[i] = o.Price
	}
	smoothed := talib.Ema(prices, emaSmoothingPeriod)

	out := make([]Observation, len(obs))
	for i, o := range obs {
		v := smoothed[i]
		if math.IsNaN(v) {
			v = o.Price
		}
		out[i] = Observation{Time: o.Time, Price: v}
	}
	return out
}

// fitOLS solves the normal equations X'X beta = X'y for the design matrix
// built from obs, returning the fitted coefficients and the in-sample
// residual standard deviation used for prediction intervals.
func fitOLS(obs []Observation, epoch time.Time, cal *calendar.Calendar) ([]float64, float64, error) {
	n := len(obs)
	p := len(featureNames)

	xData := make([]float64, 0, n*p)
	yData := make([]float64, 0, n)
	for _, o := range obs {
		elapsed := o.Time.Sub(epoch).Hours()
		xData = append(xData, buildRow(o.Time, elapsed, cal)...)
		yData = append(yData, o.Price)
	}

	x := mat.NewDense(n, p, xData)
	y := mat.NewDense(n, 1, yData)

	var xt mat.Dense
	xt.CloneFrom(x.T())

	var xtx mat.Dense
	xtx.Mul(&xt, x)

	var xty mat.Dense
	xty.Mul(&xt, y)

	var beta mat.Dense
	if err := beta.Solve(&xtx, &xty); err != nil {
		return nil, 0, err
	}

	coeffs := make([]float64, p)
	for i := 0; i < p; i++ {
		coeffs[i] = beta.At(i, 0)
	}

	residuals := make([]float64, n)
	for i, o := range obs {
		elapsed := o.Time.Sub(epoch).Hours()
		row := buildRow(o.Time, elapsed, cal)
		residuals[i] = o.Price - dot(row, coeffs)
	}
	residualStd := stat.StdDev(residuals, nil)

	return coeffs, residualStd, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// predictAt evaluates the fitted model at t and returns a 95% interval
// built from the in-sample residual standard deviation (1.96 sigma).
func (m *Model) predictAt(t time.Time) Prediction {
	elapsed := t.Sub(m.epoch).Hours()
	row := buildRow(t, elapsed, m.cal)
	yhat := dot(row, m.coefficients)
	margin := 1.96 * m.residualStd
	return Prediction{
		Timestamp: t,
		Yhat:      yhat,
		YhatLower: yhat - margin,
		YhatUpper: yhat + margin,
	}
}

// Forecast projects horizonHours hourly predictions starting at from.
// horizonHours must be in [1, 168] (§4.8).
func (m *Model) Forecast(from time.Time, horizonHours int) ([]Prediction, error) {
	if horizonHours < 1 || horizonHours > 168 {
		return nil, fmt.Errorf("price forecaster: horizon_hours must be in [1, 168], got %d", horizonHours)
	}
	out := make([]Prediction, horizonHours)
	for i := 0; i < horizonHours; i++ {
		out[i] = m.predictAt(from.Add(time.Duration(i) * time.Hour))
	}
	return out, nil
}

// evaluate computes MAE, RMSE, R2, and 95%-interval coverage of m against
// the held-out observations.
func evaluate(m *Model, obs []Observation) Metrics {
	n := len(obs)
	actual := make([]float64, n)
	predicted := make([]float64, n)
	var absErrSum, sqErrSum float64
	var covered int

	for i, o := range obs {
		pred := m.predictAt(o.Time)
		actual[i] = o.Price
		predicted[i] = pred.Yhat

		err := o.Price - pred.Yhat
		absErrSum += math.Abs(err)
		sqErrSum += err * err

		if o.Price >= pred.YhatLower && o.Price <= pred.YhatUpper {
			covered++
		}
	}

	mae := absErrSum / float64(n)
	rmse := math.Sqrt(sqErrSum / float64(n))
	r2 := rSquared(actual, predicted)
	coverage := float64(covered) / float64(n)

	return Metrics{MAE: mae, RMSE: rmse, R2: r2, Coverage95: coverage}
}

// rSquared computes the coefficient of determination against the
// actual-value mean, the same ssRes/ssTot form the teacher's analytics
// helpers use for trend goodness-of-fit.
func rSquared(actual, predicted []float64) float64 {
	mean := stat.Mean(actual, nil)
	var ssRes, ssTot float64
	for i := range actual {
		ssRes += (actual[i] - predicted[i]) * (actual[i] - predicted[i])
		ssTot += (actual[i] - mean) * (actual[i] - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
