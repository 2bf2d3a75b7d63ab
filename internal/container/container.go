package container

import (
	"context"
	"fmt"

	"attrition/adapters/excel"
	"attrition/adapters/llm"
	"attrition/adapters/llm/heuristic"
	"attrition/adapters/model"
	"attrition/adapters/postgres"
	"attrition/ai"
	"attrition/app"
	"attrition/internal/auth"
	"attrition/internal/config"
	"attrition/internal/errors"
	"attrition/internal/migration"
	"attrition/internal/session"
	"attrition/ports"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger zerolog.Logger

	// Infrastructure
	DB        *sqlx.DB
	BatchRepo ports.BatchRepository

	// Scoring
	Models *model.Holder
	Reader *excel.DataReader
	Scorer *app.Scorer

	// Language model; nil when no API key is configured
	LLM     ports.LLMClient
	Prompts *ai.PromptManager

	// Services, available after Build
	Batches  *app.BatchService
	Queries  *app.QueryService
	Insights *app.InsightGenerator

	// nil when authentication is disabled
	Auth *auth.Authenticator
}

// New creates a container and loads everything that needs no database:
// the model artifact, the language model client and the authenticator.
func New(cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Reader:  excel.NewDataReader(logger),
		Scorer:  app.NewScorer(logger),
		Prompts: ai.NewPromptManager(cfg.AI.PromptsDir, logger),
	}

	m, err := model.Load(cfg.Model.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	c.Models = model.NewHolder(m)
	logger.Info().Str("path", cfg.Model.Path).Str("version", m.Version()).Msg("model loaded")

	if err := c.initAI(); err != nil {
		return nil, err
	}

	if cfg.Auth.Enabled() {
		c.Auth, err = auth.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Users, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize authentication: %w", err)
		}
	}

	return c, nil
}

func (c *Container) initAI() error {
	if !c.Config.AI.Enabled() {
		c.Logger.Warn().Msg("no LLM API key configured: queries use the keyword planner and insights are unavailable")
		return nil
	}

	client, err := llm.NewClient(llm.Config{
		APIKey:      c.Config.AI.APIKey,
		BaseURL:     c.Config.AI.BaseURL,
		Model:       c.Config.AI.Model,
		Temperature: c.Config.AI.Temperature,
		MaxTokens:   c.Config.AI.MaxTokens,
		Timeout:     c.Config.AI.Timeout,
		MaxRetries:  c.Config.AI.MaxRetries,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	c.LLM = client
	c.Logger.Info().Str("base_url", c.Config.AI.BaseURL).Str("model", c.Config.AI.Model).Msg("LLM client configured")
	return nil
}

// InitWithDatabase migrates the schema and enables batch persistence
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	if err := db.PingContext(ctx); err != nil {
		return errors.DatabaseError("connection test", err)
	}

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		return errors.DatabaseError("migration", err)
	}

	c.BatchRepo = postgres.NewBatchRepository(db)
	c.Logger.Info().Str("driver", db.DriverName()).Str("schema_version", runner.Version()).Msg("database ready")
	return nil
}

// Build wires the application services. Call after InitWithDatabase when
// persistence is wanted.
func (c *Container) Build() {
	c.Batches = app.NewBatchService(c.Scorer, c.Models, session.NewStore(c.Config.Session.MaxBatches), c.BatchRepo, c.Logger)

	var translator *app.FilterTranslator
	if c.LLM != nil {
		translator = app.NewFilterTranslator(c.LLM, c.Prompts, app.TranslatorConfig{
			Model:   c.Config.AI.Model,
			Timeout: c.Config.AI.Timeout,
		}, c.Logger)
	}
	c.Queries = app.NewQueryService(translator, heuristic.NewPlanner(), c.Logger)

	c.Insights = app.NewInsightGenerator(c.LLM, c.Prompts, app.InsightConfig{
		Model:       c.Config.AI.Model,
		MaxTokens:   c.Config.AI.MaxTokens,
		Timeout:     c.Config.AI.Timeout,
		Concurrency: int64(c.Config.Insights.Concurrency),
	}, c.Logger)
}

// WatchModel reloads the model artifact when it changes on disk
func (c *Container) WatchModel(ctx context.Context) error {
	return model.Watch(ctx, c.Config.Model.Path, c.Models, c.Logger)
}

// Ready reports whether the service can score and, when configured, persist
func (c *Container) Ready(ctx context.Context) error {
	if c.Models.Predictor() == nil {
		return fmt.Errorf("no model loaded")
	}
	if c.DB != nil {
		if err := c.DB.PingContext(ctx); err != nil {
			return errors.DatabaseError("ping", err)
		}
	}
	return nil
}

// Shutdown releases infrastructure
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
