package ports

import (
	"context"
	"time"

	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/domain/insight"
)

// BatchMeta describes one scored upload.
type BatchMeta struct {
	ID           core.BatchID `json:"id" db:"id"`
	SourceName   string       `json:"source_name" db:"source_name"`
	ModelVersion string       `json:"model_version" db:"model_version"`
	RecordCount  int          `json:"record_count" db:"record_count"`
	HighRisk     int          `json:"high_risk_count" db:"high_risk_count"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// StoredInsight is an insight persisted for an employee of a batch.
type StoredInsight struct {
	ID         core.InsightID `json:"id"`
	BatchID    core.BatchID   `json:"batch_id"`
	EmployeeID string         `json:"employee_id"`
	Insight    insight.Record `json:"insight"`
	Degraded   bool           `json:"degraded"`
	CreatedAt  time.Time      `json:"created_at"`
}

// BatchRepository persists scored batches and generated insights.
type BatchRepository interface {
	SaveBatch(ctx context.Context, meta BatchMeta, columns []string, records []employee.ScoredRecord) error
	GetBatch(ctx context.Context, id core.BatchID) (*BatchMeta, []string, []employee.ScoredRecord, error)
	ListBatches(ctx context.Context, limit int) ([]BatchMeta, error)
	DeleteBatch(ctx context.Context, id core.BatchID) error
	SaveInsight(ctx context.Context, in StoredInsight) error
	ListInsights(ctx context.Context, batchID core.BatchID, employeeID string) ([]StoredInsight, error)
}
