package price

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/chocosentinel/internal/calendar"
)

// Artifact is the msgpack-encoded, registry-persisted form of a Model: the
// coefficient vector and residual std dev plus the training window needed
// to reconstruct the model without re-fitting.
type Artifact struct {
	Coefficients []float64 `msgpack:"coefficients"`
	ResidualStd  float64   `msgpack:"residual_std"`
	Epoch        time.Time `msgpack:"epoch"`
	WindowStart  time.Time `msgpack:"window_start"`
	WindowEnd    time.Time `msgpack:"window_end"`
	WindowN      int       `msgpack:"window_n"`
}

// MarshalArtifact encodes m into its msgpack-on-disk form, the format
// internal/registry.Publish persists for this artifact kind.
func (m *Model) MarshalArtifact() ([]byte, error) {
	a := Artifact{
		Coefficients: m.coefficients,
		ResidualStd:  m.residualStd,
		Epoch:        m.epoch,
		WindowStart:  m.window.Start,
		WindowEnd:    m.window.End,
		WindowN:      m.window.N,
	}
	data, err := msgpack.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("price forecaster: marshal artifact: %w", err)
	}
	return data, nil
}

// UnmarshalModel reconstructs a Model from its msgpack artifact bytes. The
// metrics computed at training time are not part of the artifact; callers
// that need them should read the registry entry's stored Metrics field
// instead of retraining.
func UnmarshalModel(data []byte, cal *calendar.Calendar) (*Model, error) {
	var a Artifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("price forecaster: unmarshal artifact: %w", err)
	}
	if len(a.Coefficients) != len(featureNames) {
		return nil, fmt.Errorf("price forecaster: artifact has %d coefficients, want %d", len(a.Coefficients), len(featureNames))
	}
	return &Model{
		cal:          cal,
		epoch:        a.Epoch,
		coefficients: a.Coefficients,
		residualStd:  a.ResidualStd,
		window:       TrainingWindow{Start: a.WindowStart, End: a.WindowEnd, N: a.WindowN},
	}, nil
}
