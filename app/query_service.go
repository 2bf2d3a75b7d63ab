package app

import (
	"context"
	"strings"

	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/domain/filter"
	"attrition/domain/schema"
	"attrition/internal/metrics"
	"attrition/ports"

	"github.com/rs/zerolog"
)

const (
	PlannerLLM       = "llm"
	PlannerHeuristic = "heuristic"
	PlannerNone      = "none"
)

// QueryResult is the filtered view returned for one analyst query
type QueryResult struct {
	Query          string                  `json:"query"`
	Planner        string                  `json:"planner"`
	Records        []employee.ScoredRecord `json:"records"`
	Spec           filter.Spec             `json:"-"`
	Filter         map[string]string       `json:"filter"`
	Warnings       []filter.Warning        `json:"warnings"`
	FellBack       bool                    `json:"fallback"`
	FallbackReason string                  `json:"fallback_reason,omitempty"`
}

// QueryService answers natural-language queries over a scored batch.
// Translation failures never interrupt the analyst: the unfiltered batch is
// returned with FellBack set.
type QueryService struct {
	translator *FilterTranslator
	planner    ports.QueryPlanner
	logger     zerolog.Logger
}

// NewQueryService creates a query service. translator may be nil, in which case
// planner (deterministic vocabulary) is used; both nil means every query falls back.
func NewQueryService(translator *FilterTranslator, planner ports.QueryPlanner, logger zerolog.Logger) *QueryService {
	return &QueryService{
		translator: translator,
		planner:    planner,
		logger:     logger.With().Str("component", "query_service").Logger(),
	}
}

// PlannerName reports which planner handles queries
func (s *QueryService) PlannerName() string {
	switch {
	case s.translator != nil:
		return PlannerLLM
	case s.planner != nil:
		return PlannerHeuristic
	default:
		return PlannerNone
	}
}

// Run translates query against reg and applies the result to records.
// records is only read.
func (s *QueryService) Run(ctx context.Context, query string, records []employee.ScoredRecord, reg *schema.Registry) QueryResult {
	result := QueryResult{Query: query, Planner: s.PlannerName()}

	spec, warnings, err := s.translate(ctx, query, records, reg)
	if err != nil {
		s.logger.Warn().Err(err).Str("planner", result.Planner).Msg("query translation failed; returning unfiltered batch")
		metrics.ObserveTranslation(result.Planner, metrics.OutcomeFallback)
		result.Records, _ = filter.Apply(records, filter.Spec{}, reg)
		result.Filter = map[string]string{}
		result.FellBack = true
		result.FallbackReason = err.Error()
		return result
	}

	filtered, applyWarnings := filter.Apply(records, spec, reg)
	warnings = append(warnings, applyWarnings...)
	for _, w := range warnings {
		metrics.ObserveFilterWarning(string(w.Kind))
	}
	metrics.ObserveTranslation(result.Planner, metrics.OutcomeSuccess)

	s.logger.Info().
		Str("planner", result.Planner).
		Str("filter", spec.String()).
		Int("matched", len(filtered)).
		Int("total", len(records)).
		Int("warnings", len(warnings)).
		Msg("query applied")

	result.Records = filtered
	result.Spec = spec
	result.Filter = spec.AsMap()
	result.Warnings = warnings
	return result
}

func (s *QueryService) translate(ctx context.Context, query string, records []employee.ScoredRecord, reg *schema.Registry) (filter.Spec, []filter.Warning, error) {
	if strings.TrimSpace(query) == "" {
		return filter.Spec{}, nil, nil
	}
	switch {
	case s.translator != nil:
		return s.translator.Translate(ctx, query, reg)
	case s.planner != nil:
		return interpret(s.planner.PlanQuery(query, reg, records), reg, s.logger)
	default:
		return filter.Spec{}, nil, core.NewTranslationError("no query planner configured", nil)
	}
}
