package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"attrition/domain/core"
	"attrition/domain/employee"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Feature is one model input. Numeric features are standardised with Mean and
// Scale before weighting; categorical features look up a weight per level.
type Feature struct {
	Name   string             `yaml:"name" toml:"name" json:"name"`
	Weight float64            `yaml:"weight" toml:"weight" json:"weight"`
	Mean   float64            `yaml:"mean" toml:"mean" json:"mean"`
	Scale  float64            `yaml:"scale" toml:"scale" json:"scale"`
	Levels map[string]float64 `yaml:"levels" toml:"levels" json:"levels"`
	// Default is the contribution of a level missing from Levels
	Default float64 `yaml:"default" toml:"default" json:"default"`
}

// IsCategorical reports whether the feature is looked up by level
func (f Feature) IsCategorical() bool {
	return len(f.Levels) > 0
}

// Artifact is the serialised form of a trained logistic regression.
type Artifact struct {
	Version   string    `yaml:"version" toml:"version" json:"version"`
	Intercept float64   `yaml:"intercept" toml:"intercept" json:"intercept"`
	Features  []Feature `yaml:"features" toml:"features" json:"features"`
}

// Validate rejects artifacts that cannot produce a probability
func (a Artifact) Validate() error {
	if len(a.Features) == 0 {
		return fmt.Errorf("model artifact has no features")
	}
	if math.IsNaN(a.Intercept) || math.IsInf(a.Intercept, 0) {
		return fmt.Errorf("model intercept is not finite")
	}
	seen := make(map[string]bool, len(a.Features))
	for i, f := range a.Features {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("feature %d has no name", i)
		}
		if seen[name] {
			return fmt.Errorf("feature %q declared twice", name)
		}
		seen[name] = true
		if f.Scale < 0 {
			return fmt.Errorf("feature %q has negative scale", name)
		}
	}
	return nil
}

// LogisticModel scores records with a logistic regression.
type LogisticModel struct {
	version   string
	intercept float64
	features  []Feature
	weights   []float64
	logistic  distuv.Logistic
}

// NewLogisticModel builds a model from a validated artifact
func NewLogisticModel(a Artifact) (*LogisticModel, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	m := &LogisticModel{
		version:   a.Version,
		intercept: a.Intercept,
		features:  make([]Feature, len(a.Features)),
		weights:   make([]float64, len(a.Features)),
		logistic:  distuv.Logistic{Mu: 0, S: 1},
	}
	for i, f := range a.Features {
		f.Name = strings.TrimSpace(f.Name)
		if f.Scale == 0 {
			f.Scale = 1
		}
		m.features[i] = f
		m.weights[i] = f.Weight
		if f.IsCategorical() {
			// level weights carry the effect
			m.weights[i] = 1
		}
	}
	return m, nil
}

// Version returns the artifact version string
func (m *LogisticModel) Version() string {
	return m.version
}

// RequiredAttributes lists the feature names in artifact order
func (m *LogisticModel) RequiredAttributes() []string {
	out := make([]string, len(m.features))
	for i, f := range m.features {
		out[i] = f.Name
	}
	return out
}

// PredictProbability returns sigmoid(intercept + w·x)
func (m *LogisticModel) PredictProbability(rec employee.Record) (float64, error) {
	x := make([]float64, len(m.features))
	for i, f := range m.features {
		raw, ok := rec[f.Name]
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			return 0, &core.SchemaMismatchError{Attribute: f.Name, EmployeeID: rec.ID()}
		}

		if f.IsCategorical() {
			w, known := f.Levels[raw]
			if !known {
				w = f.Default
			}
			x[i] = w
			continue
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &core.SchemaMismatchError{Attribute: f.Name, EmployeeID: rec.ID(), Reason: "non-numeric value in"}
		}
		x[i] = (v - f.Mean) / f.Scale
	}

	z := m.intercept + floats.Dot(m.weights, x)
	return m.logistic.CDF(z), nil
}
