package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"attrition/ai"
	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/domain/insight"
	"attrition/internal/metrics"
	"attrition/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// InsightConfig holds model call settings for insight generation
type InsightConfig struct {
	Model       string
	MaxTokens   int
	Timeout     time.Duration
	Concurrency int64
}

// InsightOutcome is the result of one generation. Degraded outcomes carry the
// placeholder insight and a Reason matching core.ErrInsightUnavailable.
type InsightOutcome struct {
	EmployeeID string         `json:"employee_id"`
	Insight    insight.Record `json:"insight"`
	Degraded   bool           `json:"degraded"`
	Reason     error          `json:"-"`
}

// ReasonText renders Reason for API responses
func (o InsightOutcome) ReasonText() string {
	if o.Reason == nil {
		return ""
	}
	return o.Reason.Error()
}

// InsightGenerator produces retention insights for scored employees
type InsightGenerator struct {
	llm     ports.LLMClient
	prompts *ai.PromptManager
	config  InsightConfig
	logger  zerolog.Logger
}

// NewInsightGenerator creates an insight generator
func NewInsightGenerator(llm ports.LLMClient, prompts *ai.PromptManager, config InsightConfig, logger zerolog.Logger) *InsightGenerator {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 600
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &InsightGenerator{
		llm:     llm,
		prompts: prompts,
		config:  config,
		logger:  logger.With().Str("component", "insight_generator").Logger(),
	}
}

// Generate returns the insight for one record. It never fails: any model
// problem yields a degraded outcome.
func (g *InsightGenerator) Generate(ctx context.Context, rec employee.ScoredRecord) InsightOutcome {
	out := InsightOutcome{EmployeeID: rec.EmployeeID()}

	text, err := g.complete(ctx, rec)
	if err != nil {
		g.logger.Warn().Err(err).Str("employee_id", out.EmployeeID).Msg("insight unavailable")
		out.Insight = insight.Degraded()
		out.Degraded = true
		out.Reason = core.NewInsightUnavailableError(err)
		metrics.ObserveInsight(true)
		return out
	}

	out.Insight = insight.Parse(text)
	if out.Insight.IsEmpty() {
		g.logger.Info().Str("employee_id", out.EmployeeID).Msg("insight response had no recognised labels")
	}
	metrics.ObserveInsight(false)
	return out
}

func (g *InsightGenerator) complete(ctx context.Context, rec employee.ScoredRecord) (string, error) {
	if g.llm == nil {
		return "", errors.New("no language model configured")
	}

	prompt, err := g.prompts.CompileInsightPrompt(rec)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.llm.ChatCompletion(ctx, g.config.Model, prompt, g.config.MaxTokens)
	metrics.ObserveLLM("insight", time.Since(start), err)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}

// GenerateBatch generates insights for records concurrently, bounded by the
// configured concurrency. Results keep input order. Records are only read.
func (g *InsightGenerator) GenerateBatch(ctx context.Context, records []employee.ScoredRecord) ([]InsightOutcome, error) {
	out := make([]InsightOutcome, len(records))
	sem := semaphore.NewWeighted(g.config.Concurrency)
	eg, egCtx := errgroup.WithContext(ctx)

	for i := range records {
		if err := sem.Acquire(egCtx, 1); err != nil {
			break
		}
		i := i
		eg.Go(func() error {
			defer sem.Release(1)
			out[i] = g.Generate(egCtx, records[i])
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
