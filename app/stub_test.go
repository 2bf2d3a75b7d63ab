package app

import (
	"context"
	"strconv"

	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/ports"

	"github.com/stretchr/testify/mock"
)

// inputPredictor returns the record's probability_input attribute as the probability
type inputPredictor struct{}

func (inputPredictor) PredictProbability(rec employee.Record) (float64, error) {
	return strconv.ParseFloat(rec["probability_input"], 64)
}

func (inputPredictor) RequiredAttributes() []string {
	return []string{"department", "tenure", "engagement_score", "probability_input"}
}

// mockPredictor is a testify mock of ports.Predictor
type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) PredictProbability(rec employee.Record) (float64, error) {
	args := m.Called(rec)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockPredictor) RequiredAttributes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func exampleRecords() []employee.Record {
	return []employee.Record{
		{"department": "Sales", "tenure": "2", "engagement_score": "1.5", "probability_input": "0.75"},
		{"department": "Eng", "tenure": "8", "engagement_score": "4.2", "probability_input": "0.2"},
	}
}

// staticModels serves a fixed predictor
type staticModels struct {
	p ports.Predictor
}

func (s staticModels) Predictor() ports.Predictor { return s.p }

// versionedPredictor adds a version to inputPredictor
type versionedPredictor struct {
	inputPredictor
}

func (versionedPredictor) Version() string { return "test-v1" }

// mockRepository is a testify mock of ports.BatchRepository
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) SaveBatch(ctx context.Context, meta ports.BatchMeta, columns []string, records []employee.ScoredRecord) error {
	return m.Called(ctx, meta, columns, records).Error(0)
}

func (m *mockRepository) GetBatch(ctx context.Context, id core.BatchID) (*ports.BatchMeta, []string, []employee.ScoredRecord, error) {
	args := m.Called(ctx, id)
	meta, _ := args.Get(0).(*ports.BatchMeta)
	columns, _ := args.Get(1).([]string)
	records, _ := args.Get(2).([]employee.ScoredRecord)
	return meta, columns, records, args.Error(3)
}

func (m *mockRepository) ListBatches(ctx context.Context, limit int) ([]ports.BatchMeta, error) {
	args := m.Called(ctx, limit)
	out, _ := args.Get(0).([]ports.BatchMeta)
	return out, args.Error(1)
}

func (m *mockRepository) DeleteBatch(ctx context.Context, id core.BatchID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) SaveInsight(ctx context.Context, in ports.StoredInsight) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockRepository) ListInsights(ctx context.Context, batchID core.BatchID, employeeID string) ([]ports.StoredInsight, error) {
	args := m.Called(ctx, batchID, employeeID)
	out, _ := args.Get(0).([]ports.StoredInsight)
	return out, args.Error(1)
}
