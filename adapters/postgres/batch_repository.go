package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/domain/insight"
	"attrition/ports"

	"github.com/jmoiron/sqlx"
)

// defaultListLimit caps ListBatches when no limit is given
const defaultListLimit = 50

// BatchRepositoryImpl implements BatchRepository on PostgreSQL. Queries are
// written with ? placeholders and rebound, so SQLite works too.
type BatchRepositoryImpl struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *sqlx.DB) ports.BatchRepository {
	return &BatchRepositoryImpl{db: db}
}

type batchRow struct {
	ports.BatchMeta
	ColumnNames string `db:"column_names"`
}

type employeeRow struct {
	EmployeeID  string  `db:"employee_id"`
	Attributes  string  `db:"attributes"`
	Probability float64 `db:"attrition_probability"`
	Label       string  `db:"risk_label"`
	Flag        bool    `db:"risk_flag"`
}

type insightRow struct {
	ID           string    `db:"id"`
	BatchID      string    `db:"batch_id"`
	EmployeeID   string    `db:"employee_id"`
	Diagnostic   string    `db:"diagnostic"`
	Prescriptive string    `db:"prescriptive"`
	Preventive   string    `db:"preventive"`
	Degraded     bool      `db:"degraded"`
	CreatedAt    time.Time `db:"created_at"`
}

// SaveBatch stores batch metadata and every scored row in one transaction
func (r *BatchRepositoryImpl) SaveBatch(ctx context.Context, meta ports.BatchMeta, columns []string, records []employee.ScoredRecord) error {
	columnJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO scoring_batches (id, source_name, model_version, record_count, high_risk_count, column_names, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), meta.ID.String(), meta.SourceName, meta.ModelVersion, meta.RecordCount, meta.HighRisk, string(columnJSON), meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO scored_employees (batch_id, row_index, employee_id, attributes, attrition_probability, risk_label, risk_flag)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range records {
		attrs, err := json.Marshal(rec.Attributes)
		if err != nil {
			return fmt.Errorf("encode employee %s: %w", rec.EmployeeID(), err)
		}
		if _, err := stmt.ExecContext(ctx, meta.ID.String(), i, rec.EmployeeID(), string(attrs), rec.Probability, rec.Label, rec.Flag); err != nil {
			return fmt.Errorf("insert employee %s: %w", rec.EmployeeID(), err)
		}
	}

	return tx.Commit()
}

// GetBatch loads a batch with its rows in original order
func (r *BatchRepositoryImpl) GetBatch(ctx context.Context, id core.BatchID) (*ports.BatchMeta, []string, []employee.ScoredRecord, error) {
	var row batchRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, source_name, model_version, record_count, high_risk_count, column_names, created_at
		FROM scoring_batches
		WHERE id = ?
	`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil, fmt.Errorf("%w %s", core.ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	var columns []string
	if err := json.Unmarshal([]byte(row.ColumnNames), &columns); err != nil {
		return nil, nil, nil, fmt.Errorf("decode columns of batch %s: %w", id, err)
	}

	var rows []employeeRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT employee_id, attributes, attrition_probability, risk_label, risk_flag
		FROM scored_employees
		WHERE batch_id = ?
		ORDER BY row_index
	`), id.String())
	if err != nil {
		return nil, nil, nil, err
	}

	records := make([]employee.ScoredRecord, 0, len(rows))
	for _, er := range rows {
		var attrs employee.Record
		if err := json.Unmarshal([]byte(er.Attributes), &attrs); err != nil {
			return nil, nil, nil, fmt.Errorf("decode employee %s: %w", er.EmployeeID, err)
		}
		records = append(records, employee.ScoredRecord{
			Attributes:  attrs,
			Probability: er.Probability,
			Label:       er.Label,
			Flag:        er.Flag,
		})
	}

	meta := row.BatchMeta
	meta.CreatedAt = meta.CreatedAt.UTC()
	return &meta, columns, records, nil
}

// ListBatches returns the newest batches first
func (r *BatchRepositoryImpl) ListBatches(ctx context.Context, limit int) ([]ports.BatchMeta, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var metas []ports.BatchMeta
	err := r.db.SelectContext(ctx, &metas, r.db.Rebind(`
		SELECT id, source_name, model_version, record_count, high_risk_count, created_at
		FROM scoring_batches
		ORDER BY created_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	for i := range metas {
		metas[i].CreatedAt = metas[i].CreatedAt.UTC()
	}
	return metas, nil
}

// DeleteBatch removes a batch with its rows and insights. Dependent rows are
// deleted explicitly since SQLite does not enforce ON DELETE CASCADE by default.
func (r *BatchRepositoryImpl) DeleteBatch(ctx context.Context, id core.BatchID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"insights", "scored_employees"} {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE batch_id = ?"), id.String()); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM scoring_batches WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w %s", core.ErrBatchNotFound, id)
	}

	return tx.Commit()
}

// SaveInsight stores one generated insight
func (r *BatchRepositoryImpl) SaveInsight(ctx context.Context, in ports.StoredInsight) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO insights (id, batch_id, employee_id, diagnostic, prescriptive, preventive, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), in.ID.String(), in.BatchID.String(), in.EmployeeID,
		in.Insight.Diagnostic, in.Insight.Prescriptive, in.Insight.Preventive, in.Degraded, in.CreatedAt)
	return err
}

// ListInsights returns an employee's insights, newest first
func (r *BatchRepositoryImpl) ListInsights(ctx context.Context, batchID core.BatchID, employeeID string) ([]ports.StoredInsight, error) {
	var rows []insightRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, batch_id, employee_id, diagnostic, prescriptive, preventive, degraded, created_at
		FROM insights
		WHERE batch_id = ? AND employee_id = ?
		ORDER BY created_at DESC
	`), batchID.String(), employeeID)
	if err != nil {
		return nil, err
	}

	out := make([]ports.StoredInsight, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.StoredInsight{
			ID:         core.InsightID(row.ID),
			BatchID:    core.BatchID(row.BatchID),
			EmployeeID: row.EmployeeID,
			Insight: insight.Record{
				Diagnostic:   row.Diagnostic,
				Prescriptive: row.Prescriptive,
				Preventive:   row.Preventive,
			},
			Degraded:  row.Degraded,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return out, nil
}
