package app

import (
	"errors"
	"fmt"
	"math"

	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/ports"

	"github.com/rs/zerolog"
)

// ProbabilityTolerance is how far outside [0,1] a model output may drift
// (floating point noise) before it is treated as a model fault.
const ProbabilityTolerance = 1e-9

// Scorer turns raw employee records into scored records
type Scorer struct {
	logger zerolog.Logger
}

// NewScorer creates a scorer
func NewScorer(logger zerolog.Logger) *Scorer {
	return &Scorer{logger: logger.With().Str("component", "scorer").Logger()}
}

// Score applies model to every record. The batch is all-or-nothing: the first
// record missing a required attribute, or producing an invalid probability,
// aborts it. Records lacking EmployeeID get a synthetic id (see
// employee.SyntheticIDs); input is not mutated.
func (s *Scorer) Score(records []employee.Record, model ports.Predictor) ([]employee.ScoredRecord, error) {
	if model == nil {
		return nil, fmt.Errorf("no prediction model configured")
	}
	if len(records) == 0 {
		return nil, core.ErrEmptyDataset
	}

	required := model.RequiredAttributes()
	out := make([]employee.ScoredRecord, 0, len(records))

	synthetic := employee.SyntheticIDs(records)

	for i, raw := range records {
		rec := raw.Clone()
		if id, ok := synthetic[i]; ok {
			rec[employee.AttrEmployeeID] = id
		}

		for _, attr := range required {
			if !rec.Has(attr) {
				return nil, &core.SchemaMismatchError{Attribute: attr, EmployeeID: rec.ID(), Index: i}
			}
		}

		p, err := model.PredictProbability(rec)
		if err != nil {
			var sm *core.SchemaMismatchError
			if errors.As(err, &sm) {
				sm.EmployeeID = rec.ID()
				sm.Index = i
				return nil, sm
			}
			return nil, fmt.Errorf("predict employee %s: %w", rec.ID(), err)
		}

		p, err = s.checkProbability(rec.ID(), p)
		if err != nil {
			return nil, err
		}

		out = append(out, employee.NewScoredRecord(rec, p))
	}

	return out, nil
}

func (s *Scorer) checkProbability(id string, p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < -ProbabilityTolerance || p > 1+ProbabilityTolerance {
		return 0, core.NewProbabilityError(id, p)
	}
	if p < 0 || p > 1 {
		clamped := math.Min(1, math.Max(0, p))
		s.logger.Warn().Str("employee_id", id).Float64("probability", p).Float64("clamped", clamped).Msg("model probability clamped")
		return clamped, nil
	}
	return p, nil
}
