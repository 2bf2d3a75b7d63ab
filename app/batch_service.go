package app

import (
	"context"
	"fmt"
	"time"

	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/domain/schema"
	"attrition/internal/errors"
	"attrition/internal/metrics"
	"attrition/internal/session"
	"attrition/ports"

	"github.com/rs/zerolog"
)

// Dataset is a parsed upload: header order plus one record per row
type Dataset struct {
	SourceName string
	Headers    []string
	Rows       []employee.Record
}

// BatchService scores uploads, caches them for the session and persists them
// together with any insights a caller saves when a repository is configured
type BatchService struct {
	scorer *Scorer
	models ports.ModelSource
	store  *session.Store
	repo   ports.BatchRepository
	logger zerolog.Logger
}

// NewBatchService creates a batch service. repo may be nil when
// persistence is disabled.
func NewBatchService(scorer *Scorer, models ports.ModelSource, store *session.Store, repo ports.BatchRepository, logger zerolog.Logger) *BatchService {
	return &BatchService{
		scorer: scorer,
		models: models,
		store:  store,
		repo:   repo,
		logger: logger.With().Str("component", "batch_service").Logger(),
	}
}

// Ingest scores ds with the current model snapshot and caches the batch.
// Scoring is all-or-nothing; a failed batch is neither cached nor stored.
func (s *BatchService) Ingest(ctx context.Context, ds Dataset) (*session.Batch, error) {
	model := s.models.Predictor()
	if model == nil {
		return nil, errors.InternalError("no prediction model loaded")
	}

	scored, err := s.scorer.Score(ds.Rows, model)
	if err != nil {
		metrics.ObserveBatch(0, 0, err)
		s.logger.Error().Err(err).Str("source", ds.SourceName).Int("rows", len(ds.Rows)).Msg("batch rejected")
		return nil, err
	}

	high := len(employee.HighRisk(scored))
	metrics.ObserveBatch(high, len(scored)-high, nil)

	columns := employee.Columns(ds.Headers)
	b := &session.Batch{
		Meta: ports.BatchMeta{
			ID:           core.NewBatchID(),
			SourceName:   ds.SourceName,
			ModelVersion: modelVersion(model),
			RecordCount:  len(scored),
			HighRisk:     high,
			CreatedAt:    time.Now().UTC(),
		},
		Columns:  columns,
		Registry: schema.FromDataset(columns, ds.Rows),
		Records:  scored,
	}

	if s.repo != nil {
		if err := s.repo.SaveBatch(ctx, b.Meta, b.Columns, b.Records); err != nil {
			return nil, errors.DatabaseError("save batch", err)
		}
	}

	for _, id := range s.store.Put(b) {
		s.logger.Debug().Str("batch_id", id.String()).Msg("batch evicted from session cache")
	}

	s.logger.Info().
		Str("batch_id", b.Meta.ID.String()).
		Str("source", ds.SourceName).
		Str("model_version", b.Meta.ModelVersion).
		Int("records", b.Meta.RecordCount).
		Int("high_risk", high).
		Msg("batch scored")

	return b, nil
}

// Batch returns a cached batch, reloading it from the repository when it was
// evicted or the process restarted.
func (s *BatchService) Batch(ctx context.Context, id core.BatchID) (*session.Batch, error) {
	if b, ok := s.store.Get(id); ok {
		return b, nil
	}
	if s.repo == nil {
		return nil, fmt.Errorf("%w %s", core.ErrBatchNotFound, id)
	}

	meta, columns, records, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, err
		}
		return nil, errors.DatabaseError("load batch", err)
	}

	raw := make([]employee.Record, len(records))
	for i, r := range records {
		raw[i] = r.Attributes
	}
	b := &session.Batch{
		Meta:     *meta,
		Columns:  columns,
		Registry: schema.FromDataset(columns, raw),
		Records:  records,
	}
	s.store.Put(b)
	return b, nil
}

// Batches lists cached batches, or stored ones when persistence is enabled
func (s *BatchService) Batches(ctx context.Context, limit int) ([]ports.BatchMeta, error) {
	if s.repo != nil {
		metas, err := s.repo.ListBatches(ctx, limit)
		if err != nil {
			return nil, errors.DatabaseError("list batches", err)
		}
		return metas, nil
	}
	out := s.store.List()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func modelVersion(p ports.Predictor) string {
	if v, ok := p.(interface{ Version() string }); ok {
		return v.Version()
	}
	return ""
}

// Delete drops a batch from the session cache and, when persistence is
// enabled, removes it with its rows and saved insights.
func (s *BatchService) Delete(ctx context.Context, id core.BatchID) error {
	_, cached := s.store.Get(id)
	s.store.Delete(id)

	if s.repo == nil {
		if !cached {
			return fmt.Errorf("%w %s", core.ErrBatchNotFound, id)
		}
		s.logger.Info().Str("batch_id", id.String()).Msg("batch deleted")
		return nil
	}

	if err := s.repo.DeleteBatch(ctx, id); err != nil {
		if core.IsNotFoundError(err) {
			return err
		}
		return errors.DatabaseError("delete batch", err)
	}
	s.logger.Info().Str("batch_id", id.String()).Msg("batch deleted")
	return nil
}

// SaveInsight stores a generated insight in the employee's history. Without a
// repository nothing is stored and nil is returned.
func (s *BatchService) SaveInsight(ctx context.Context, batchID core.BatchID, out InsightOutcome) (*ports.StoredInsight, error) {
	if s.repo == nil {
		return nil, nil
	}
	stored := &ports.StoredInsight{
		ID:         core.NewInsightID(),
		BatchID:    batchID,
		EmployeeID: out.EmployeeID,
		Insight:    out.Insight,
		Degraded:   out.Degraded,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.SaveInsight(ctx, *stored); err != nil {
		return nil, errors.DatabaseError("save insight", err)
	}
	return stored, nil
}

// Insights lists stored insights for an employee of a batch
func (s *BatchService) Insights(ctx context.Context, batchID core.BatchID, employeeID string) ([]ports.StoredInsight, error) {
	if s.repo == nil {
		return nil, nil
	}
	list, err := s.repo.ListInsights(ctx, batchID, employeeID)
	if err != nil {
		return nil, errors.DatabaseError("list insights", err)
	}
	return list, nil
}
