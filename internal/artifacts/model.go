package artifacts

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// ModelTypeLinearRegression is the only estimator type the service serves.
const ModelTypeLinearRegression = "linear_regression"

// Regressor is a trained model that scores rows of features.
// It returns one output per input row.
type Regressor interface {
	Predict(rows [][]float64) ([]float64, error)
	NumFeatures() int
}

// LinearRegression is an ordinary least squares estimator.
type LinearRegression struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// modelFile is the serialized form of a model artifact.
type modelFile struct {
	Type         string    `json:"type"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Predict returns intercept + coefficients·row for each row.
func (m *LinearRegression) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(m.Coefficients) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(m.Coefficients))
		}
		y := m.Intercept
		for j, x := range row {
			y += m.Coefficients[j] * x
		}
		out = append(out, y)
	}
	return out, nil
}

// NumFeatures returns the number of inputs the model was fitted on.
func (m *LinearRegression) NumFeatures() int {
	return len(m.Coefficients)
}

// DecodeModel parses a serialized model artifact.
func DecodeModel(data []byte) (*LinearRegression, error) {
	var f modelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: model is not valid JSON: %v", ErrInvalidArtifact, err)
	}

	if f.Type != ModelTypeLinearRegression {
		return nil, fmt.Errorf("%w: unsupported model type %q", ErrInvalidArtifact, f.Type)
	}
	if len(f.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: model has no coefficients", ErrInvalidArtifact)
	}
	for i, c := range f.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: coefficient %d is not finite", ErrInvalidArtifact, i)
		}
	}
	if math.IsNaN(f.Intercept) || math.IsInf(f.Intercept, 0) {
		return nil, fmt.Errorf("%w: intercept is not finite", ErrInvalidArtifact)
	}

	return &LinearRegression{
		Coefficients: f.Coefficients,
		Intercept:    f.Intercept,
	}, nil
}

// EncodeModel serializes a model in the artifact format read by DecodeModel.
func EncodeModel(m *LinearRegression) ([]byte, error) {
	return json.Marshal(modelFile{
		Type:         ModelTypeLinearRegression,
		Coefficients: m.Coefficients,
		Intercept:    m.Intercept,
	})
}
