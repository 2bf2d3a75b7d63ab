package app

import (
	"context"
	"strings"
	"time"

	"attrition/ai"
	"attrition/domain/core"
	"attrition/domain/filter"
	"attrition/domain/schema"
	"attrition/internal/metrics"
	"attrition/ports"

	"github.com/rs/zerolog"
)

// TranslatorConfig holds model call settings for query translation
type TranslatorConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// FilterTranslator converts analyst questions into validated filter specs
type FilterTranslator struct {
	llm     ports.LLMClient
	prompts *ai.PromptManager
	config  TranslatorConfig
	logger  zerolog.Logger
}

// NewFilterTranslator creates a translator backed by a language model
func NewFilterTranslator(llm ports.LLMClient, prompts *ai.PromptManager, config TranslatorConfig, logger zerolog.Logger) *FilterTranslator {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 256
	}
	return &FilterTranslator{
		llm:     llm,
		prompts: prompts,
		config:  config,
		logger:  logger.With().Str("component", "filter_translator").Logger(),
	}
}

// Translate asks the model for a filter object and validates it against reg.
// Any model failure (transport, timeout, unparseable output) is a *core.TranslationError;
// callers fall back to the unfiltered dataset.
func (t *FilterTranslator) Translate(ctx context.Context, query string, reg *schema.Registry) (filter.Spec, []filter.Warning, error) {
	if strings.TrimSpace(query) == "" {
		return filter.Spec{}, nil, nil
	}

	prompt, err := t.prompts.CompileFilterPrompt(query, reg)
	if err != nil {
		return filter.Spec{}, nil, core.NewTranslationError("render prompt", err)
	}

	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := t.llm.ChatCompletion(ctx, t.config.Model, prompt, t.config.MaxTokens)
	metrics.ObserveLLM("filter_translation", time.Since(start), err)
	if err != nil {
		t.logger.Warn().Err(err).Msg("filter translation request failed")
		return filter.Spec{}, nil, core.NewTranslationError("language model request failed", err)
	}

	return t.Interpret(response, reg)
}

// Interpret is the parse-then-validate pipeline applied to untrusted planner output:
// extract exactly one JSON object, decode it, then map it onto reg.
func (t *FilterTranslator) Interpret(response string, reg *schema.Registry) (filter.Spec, []filter.Warning, error) {
	return interpret(response, reg, t.logger)
}

func interpret(response string, reg *schema.Registry, logger zerolog.Logger) (filter.Spec, []filter.Warning, error) {
	raw, err := filter.ParseObject(response)
	if err != nil {
		logger.Warn().Err(err).Int("response_len", len(response)).Msg("unparseable filter response")
		return filter.Spec{}, nil, err
	}

	spec, warnings := filter.FromRaw(raw, reg)
	for _, w := range warnings {
		logger.Info().Str("kind", string(w.Kind)).Str("attribute", w.Attribute).Msg(w.Message)
	}
	logger.Debug().Str("spec", spec.String()).Msg("filter translated")
	return spec, warnings, nil
}
