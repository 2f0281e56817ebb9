package scoring

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Sample pairs engineered Features with the target value a supervised
// artifact is fit against.
type Sample struct {
	Features Features
	Target   float64
}

// FitMetrics reports train/test performance and the overfitting flag for
// one trained artifact.
type FitMetrics struct {
	TrainScore float64
	TestScore  float64
	CVScore    float64
	Overfit    bool
}

// EnergyScoreRegressor is an OLS fit of the 10 named features against the
// formula-derived energy score, the same normal-equations approach the
// price forecaster uses.
type EnergyScoreRegressor struct {
	coefficients []float64
	Metrics      FitMetrics
}

// overfitThresholdRegressor is the |train-test| R2 gap that flags
// overfitting for the regressor (§4.9).
const overfitThresholdRegressor = 0.10

// TrainEnergyScoreRegressor fits an EnergyScoreRegressor on samples, using
// an 80/20 holdout split for the reported train/test scores and a 5-fold
// cross-validation pass on the training partition for CVScore.
func TrainEnergyScoreRegressor(samples []Sample, rng *rand.Rand) (*EnergyScoreRegressor, error) {
	if len(samples) < 20 {
		return nil, fmt.Errorf("scoring: energy regressor needs at least 20 samples, got %d", len(samples))
	}

	shuffled := shuffleSamples(samples, rng)
	train, test := holdoutSplit(shuffled, 0.8)

	coeffs, err := fitLinear(train)
	if err != nil {
		return nil, fmt.Errorf("scoring: energy regressor fit: %w", err)
	}

	r := &EnergyScoreRegressor{coefficients: coeffs}
	r.Metrics = FitMetrics{
		TrainScore: r2Score(r.predictAll(train), targets(train)),
		TestScore:  r2Score(r.predictAll(test), targets(test)),
		CVScore:    crossValidateR2(train, fitLinear, 5),
	}
	r.Metrics.Overfit = math.Abs(r.Metrics.TrainScore-r.Metrics.TestScore) > overfitThresholdRegressor
	return r, nil
}

// Predict returns the regressor's energy-score estimate for f.
func (r *EnergyScoreRegressor) Predict(f Features) float64 {
	return dot(f.Vector(), r.coefficients)
}

func (r *EnergyScoreRegressor) predictAll(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = r.Predict(s.Features)
	}
	return out
}

func targets(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Target
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// fitLinear solves the OLS normal equations X'X beta = X'y over samples'
// feature vectors against their targets.
func fitLinear(samples []Sample) ([]float64, error) {
	n := len(samples)
	p := len(FeatureNames)

	xData := make([]float64, 0, n*p)
	yData := make([]float64, 0, n)
	for _, s := range samples {
		xData = append(xData, s.Features.Vector()...)
		yData = append(yData, s.Target)
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
		return nil, err
	}

	coeffs := make([]float64, p)
	for i := 0; i < p; i++ {
		coeffs[i] = beta.At(i, 0)
	}
	return coeffs, nil
}

// r2Score is the coefficient of determination of predicted against actual.
func r2Score(predicted, actual []float64) float64 {
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

// holdoutSplit splits samples into a leading train fraction and trailing
// test fraction.
func holdoutSplit(samples []Sample, trainFraction float64) (train, test []Sample) {
	cut := int(float64(len(samples)) * trainFraction)
	if cut < 1 {
		cut = 1
	}
	if cut >= len(samples) {
		cut = len(samples) - 1
	}
	return samples[:cut], samples[cut:]
}

func shuffleSamples(samples []Sample, rng *rand.Rand) []Sample {
	out := append([]Sample(nil), samples...)
	if rng == nil {
		return out
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// crossValidateR2 runs k-fold cross-validation over samples, fitting with
// fit on each training fold and averaging the held-out fold's R2.
func crossValidateR2(samples []Sample, fit func([]Sample) ([]float64, error), k int) float64 {
	if len(samples) < k {
		k = len(samples)
	}
	if k < 2 {
		return 0
	}

	foldSize := len(samples) / k
	var total float64
	var folds int

	for i := 0; i < k; i++ {
		start := i * foldSize
		end := start + foldSize
		if i == k-1 {
			end = len(samples)
		}
		if start >= end {
			continue
		}

		testFold := samples[start:end]
		trainFold := append(append([]Sample(nil), samples[:start]...), samples[end:]...)
		if len(trainFold) == 0 {
			continue
		}

		coeffs, err := fit(trainFold)
		if err != nil {
			continue
		}
		predicted := make([]float64, len(testFold))
		actual := make([]float64, len(testFold))
		for j, s := range testFold {
			predicted[j] = dot(s.Features.Vector(), coeffs)
			actual[j] = s.Target
		}
		total += r2Score(predicted, actual)
		folds++
	}

	if folds == 0 {
		return 0
	}
	return total / float64(folds)
}
