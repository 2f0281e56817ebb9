package scoring

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// regressorArtifact is the msgpack-encoded, registry-persisted form of an
// EnergyScoreRegressor, mirroring the price forecaster's artifact shape.
type regressorArtifact struct {
	Coefficients []float64 `msgpack:"coefficients"`
	TrainScore   float64   `msgpack:"train_score"`
	TestScore    float64   `msgpack:"test_score"`
	CVScore      float64   `msgpack:"cv_score"`
	Overfit      bool      `msgpack:"overfit"`
}

// MarshalArtifact encodes r into its msgpack on-disk form.
func (r *EnergyScoreRegressor) MarshalArtifact() ([]byte, error) {
	a := regressorArtifact{
		Coefficients: r.coefficients,
		TrainScore:   r.Metrics.TrainScore,
		TestScore:    r.Metrics.TestScore,
		CVScore:      r.Metrics.CVScore,
		Overfit:      r.Metrics.Overfit,
	}
	data, err := msgpack.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("scoring: marshal regressor artifact: %w", err)
	}
	return data, nil
}

// UnmarshalEnergyScoreRegressor reconstructs an EnergyScoreRegressor from
// its msgpack artifact bytes.
func UnmarshalEnergyScoreRegressor(data []byte) (*EnergyScoreRegressor, error) {
	var a regressorArtifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("scoring: unmarshal regressor artifact: %w", err)
	}
	if len(a.Coefficients) != len(FeatureNames) {
		return nil, fmt.Errorf("scoring: regressor artifact has %d coefficients, want %d", len(a.Coefficients), len(FeatureNames))
	}
	return &EnergyScoreRegressor{
		coefficients: a.Coefficients,
		Metrics: FitMetrics{
			TrainScore: a.TrainScore,
			TestScore:  a.TestScore,
			CVScore:    a.CVScore,
			Overfit:    a.Overfit,
		},
	}, nil
}

// classifierArtifact is the msgpack-encoded, registry-persisted form of a
// ProductionClassifier.
type classifierArtifact struct {
	Coefficients []float64 `msgpack:"coefficients"`
	TrainScore   float64   `msgpack:"train_score"`
	TestScore    float64   `msgpack:"test_score"`
	CVScore      float64   `msgpack:"cv_score"`
	Overfit      bool      `msgpack:"overfit"`
}

// MarshalArtifact encodes c into its msgpack on-disk form.
func (c *ProductionClassifier) MarshalArtifact() ([]byte, error) {
	a := classifierArtifact{
		Coefficients: c.coefficients,
		TrainScore:   c.Metrics.TrainScore,
		TestScore:    c.Metrics.TestScore,
		CVScore:      c.Metrics.CVScore,
		Overfit:      c.Metrics.Overfit,
	}
	data, err := msgpack.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("scoring: marshal classifier artifact: %w", err)
	}
	return data, nil
}

// UnmarshalProductionClassifier reconstructs a ProductionClassifier from
// its msgpack artifact bytes.
func UnmarshalProductionClassifier(data []byte) (*ProductionClassifier, error) {
	var a classifierArtifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("scoring: unmarshal classifier artifact: %w", err)
	}
	if len(a.Coefficients) != len(FeatureNames) {
		return nil, fmt.Errorf("scoring: classifier artifact has %d coefficients, want %d", len(a.Coefficients), len(FeatureNames))
	}
	return &ProductionClassifier{
		coefficients: a.Coefficients,
		Metrics: FitMetrics{
			TrainScore: a.TrainScore,
			TestScore:  a.TestScore,
			CVScore:    a.CVScore,
			Overfit:    a.Overfit,
		},
	}, nil
}
