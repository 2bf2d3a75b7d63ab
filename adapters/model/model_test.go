package model

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"attrition/domain/core"
	"attrition/domain/employee"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlArtifact = `version: v1
intercept: 0.5
features:
  - name: tenure
    weight: -0.4
    mean: 4
    scale: 2
  - name: engagement_score
    weight: -1.2
    mean: 3
  - name: department
    levels:
      Sales: 0.8
      Eng: -0.3
    default: 0.1
`

const tomlArtifact = `version = "v1-toml"
intercept = 0.5

[[features]]
name = "tenure"
weight = -0.4
mean = 4.0
scale = 2.0

[[features]]
name = "engagement_score"
weight = -1.2
mean = 3.0

[[features]]
name = "department"
default = 0.1
[features.levels]
Sales = 0.8
Eng = -0.3
`

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func TestLogisticModelPredictsSigmoid(t *testing.T) {
	a, err := DecodeArtifact([]byte(yamlArtifact), ".yaml")
	require.NoError(t, err)
	m, err := NewLogisticModel(a)
	require.NoError(t, err)

	assert.Equal(t, []string{"tenure", "engagement_score", "department"}, m.RequiredAttributes())

	p, err := m.PredictProbability(employee.Record{"tenure": "2", "engagement_score": "1.5", "department": "Sales"})
	require.NoError(t, err)
	want := sigmoid(0.5 + -0.4*((2.0-4)/2) + -1.2*(1.5-3) + 0.8)
	assert.InDelta(t, want, p, 1e-12)

	// unknown level uses the default contribution
	p, err = m.PredictProbability(employee.Record{"tenure": "4", "engagement_score": "3", "department": "Legal"})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(0.5+0.1), p, 1e-12)
}

func TestLogisticModelMissingAttribute(t *testing.T) {
	a, err := DecodeArtifact([]byte(yamlArtifact), "yml")
	require.NoError(t, err)
	m, err := NewLogisticModel(a)
	require.NoError(t, err)

	_, err = m.PredictProbability(employee.Record{"EmployeeID": "9", "tenure": "2", "department": "Sales"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSchemaMismatch))
	var sm *core.SchemaMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, "engagement_score", sm.Attribute)
	assert.Equal(t, "9", sm.EmployeeID)

	_, err = m.PredictProbability(employee.Record{"tenure": "two", "engagement_score": "1", "department": "Sales"})
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
}

func TestTOMLAndYAMLArtifactsAgree(t *testing.T) {
	ay, err := DecodeArtifact([]byte(yamlArtifact), ".yaml")
	require.NoError(t, err)
	at, err := DecodeArtifact([]byte(tomlArtifact), ".toml")
	require.NoError(t, err)

	my, _ := NewLogisticModel(ay)
	mt, _ := NewLogisticModel(at)
	rec := employee.Record{"tenure": "7", "engagement_score": "2.2", "department": "Eng"}
	py, err := my.PredictProbability(rec)
	require.NoError(t, err)
	pt, err := mt.PredictProbability(rec)
	require.NoError(t, err)
	assert.InDelta(t, py, pt, 1e-12)
	assert.Equal(t, "v1-toml", mt.Version())
}

func TestDecodeArtifactRejectsBadInput(t *testing.T) {
	_, err := DecodeArtifact([]byte(`{"version":"x","intercept":0,"features":[]}`), ".json")
	assert.Error(t, err)

	_, err = DecodeArtifact([]byte(`{"intercept":0,"features":[{"name":"a","weight":1}],"bias":2}`), ".json")
	assert.Error(t, err, "unknown fields are rejected")

	_, err = DecodeArtifact([]byte("features:\n  - name: a\n  - name: a\n"), ".yaml")
	assert.Error(t, err)

	_, err = DecodeArtifact([]byte(""), ".pkl")
	assert.Error(t, err)
}

func TestWatchReloadsModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlArtifact), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, Watch(ctx, path, h, zerolog.Nop()))

	updated := "version: v2\nintercept: 0\nfeatures:\n  - name: tenure\n    weight: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		return h.Current().Version() == "v2"
	}, 3*time.Second, 20*time.Millisecond)

	// a broken file keeps the last good model
	require.NoError(t, os.WriteFile(path, []byte("features: ["), 0o644))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, "v2", h.Current().Version())
}

func TestHolderPredictorNilWhenEmpty(t *testing.T) {
	h := NewHolder(nil)
	assert.Nil(t, h.Predictor())

	m, err := NewLogisticModel(Artifact{Version: "v1", Features: []Feature{{Name: "tenure", Weight: 1}}})
	require.NoError(t, err)
	h.Swap(m)
	require.NotNil(t, h.Predictor())
	assert.Equal(t, []string{"tenure"}, h.Predictor().RequiredAttributes())
}
