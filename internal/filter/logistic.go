package filter

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/fxlab/session-levels/internal/features"
)

// LogisticModel is a deterministic logistic scorer over the feature
// contract. It stands in for the externally trained classifier in tests and
// demo runs; no training happens here.
type LogisticModel struct {
	schema  []string
	weights map[string]float64
	bias    float64
}

// NewLogisticModel creates a model with explicit weights. Weights for names
// outside the schema are rejected.
func NewLogisticModel(weights map[string]float64, bias float64) (*LogisticModel, error) {
	schema := features.Schema()
	known := make(map[string]bool, len(schema))
	for _, name := range schema {
		known[name] = true
	}
	for name := range weights {
		if !known[name] {
			return nil, fmt.Errorf("weight for unknown feature %q", name)
		}
	}
	return &LogisticModel{schema: schema, weights: weights, bias: bias}, nil
}

// NewSeededLogisticModel draws small random weights from a seeded source, so
// demo runs are reproducible from the configured seed.
func NewSeededLogisticModel(seed int64) *LogisticModel {
	rng := rand.New(rand.NewSource(seed))
	schema := features.Schema()
	weights := make(map[string]float64, len(schema))
	for _, name := range schema {
		weights[name] = (rng.Float64() - 0.5) * 0.1
	}
	return &LogisticModel{schema: schema, weights: weights}
}

// Predict applies the logistic function to the weighted feature sum.
func (m *LogisticModel) Predict(v features.Vector) (float64, error) {
	z := m.bias
	for name, w := range m.weights {
		z += w * v[name]
	}
	return 1.0 / (1.0 + math.Exp(-z)), nil
}

// Schema returns the expected feature names.
func (m *LogisticModel) Schema() []string {
	out := make([]string, len(m.schema))
	copy(out, m.schema)
	return out
}
