package scoring

import (
	"fmt"
	"math"
	"math/rand"
)

// overfitThresholdClassifier is the |train-test| accuracy gap that flags
// overfitting for the classifier (§4.9).
const overfitThresholdClassifier = 0.15

// ProductionClassifier predicts the suitability score via the same
// OLS-normal-equations fit the regressor uses, then bins the prediction at
// the 75/55/35 thresholds with the valley boost.
type ProductionClassifier struct {
	coefficients []float64
	Metrics      FitMetrics
}

// TrainProductionClassifier fits a ProductionClassifier on samples whose
// Target is the formula-derived suitability score, reporting classification
// accuracy (not R2) as train/test/CV scores.
func TrainProductionClassifier(samples []Sample, rng *rand.Rand) (*ProductionClassifier, error) {
	if len(samples) < 20 {
		return nil, fmt.Errorf("scoring: production classifier needs at least 20 samples, got %d", len(samples))
	}

	shuffled := shuffleSamples(samples, rng)
	train, test := holdoutSplit(shuffled, 0.8)

	coeffs, err := fitLinear(train)
	if err != nil {
		return nil, fmt.Errorf("scoring: production classifier fit: %w", err)
	}

	c := &ProductionClassifier{coefficients: coeffs}
	c.Metrics = FitMetrics{
		TrainScore: c.accuracy(train),
		TestScore:  c.accuracy(test),
		CVScore:    crossValidateAccuracy(train, 5),
	}
	c.Metrics.Overfit = math.Abs(c.Metrics.TrainScore-c.Metrics.TestScore) > overfitThresholdClassifier
	return c, nil
}

// Predict returns the classifier's production-class label for f.
func (c *ProductionClassifier) Predict(f Features) ProductionClass {
	suitability := dot(f.Vector(), c.coefficients)
	if f.IsValley {
		suitability *= 1.15
	}
	return ClassifyFromSuitability(suitability)
}

func (c *ProductionClassifier) accuracy(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var correct int
	for _, s := range samples {
		predicted := c.Predict(s.Features)
		actual := ClassifyFromSuitability(s.Target)
		if predicted == actual {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}

// crossValidateAccuracy runs k-fold cross-validation over samples whose
// Target is a suitability score, fitting and classifying each held-out
// fold and averaging accuracy.
func crossValidateAccuracy(samples []Sample, k int) float64 {
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

		coeffs, err := fitLinear(trainFold)
		if err != nil {
			continue
		}
		var correct int
		for _, s := range testFold {
			suitability := dot(s.Features.Vector(), coeffs)
			if s.Features.IsValley {
				suitability *= 1.15
			}
			if ClassifyFromSuitability(suitability) == ClassifyFromSuitability(s.Target) {
				correct++
			}
		}
		total += float64(correct) / float64(len(testFold))
		folds++
	}

	if folds == 0 {
		return 0
	}
	return total / float64(folds)
}
