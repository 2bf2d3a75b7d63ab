package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"attrition/internal/config"
	"attrition/internal/container"
	"attrition/internal/logging"
	"attrition/internal/metrics"
	"attrition/ui"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func initDatabase(ctx context.Context, cfg *config.Config, c *container.Container) error {
	db, err := sqlx.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := c.InitWithDatabase(ctx, db); err != nil {
		db.Close()
		return err
	}
	return nil
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", false)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if envErr != nil {
		logger.Debug().Msg("no .env file found, using system environment variables")
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	appContainer, err := container.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create application container")
	}
	defer appContainer.Shutdown(context.Background())

	if cfg.Database.Enabled() {
		if err := initDatabase(ctx, cfg, appContainer); err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize database")
		}
	} else {
		logger.Warn().Msg("DATABASE_URL not set: scored batches are kept in memory only")
	}
	appContainer.Build()

	if cfg.Model.Watch {
		if err := appContainer.WatchModel(ctx); err != nil {
			logger.Warn().Err(err).Msg("model hot reload disabled")
		}
	}

	server := ui.NewServer(ui.Deps{
		Batches:        appContainer.Batches,
		Queries:        appContainer.Queries,
		Insights:       appContainer.Insights,
		Reader:         appContainer.Reader,
		Auth:           appContainer.Auth,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	apiServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var adminServer *http.Server
	if cfg.Server.AdminPort != "" {
		ready := func() error {
			readyCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return appContainer.Ready(readyCtx)
		}
		adminServer = &http.Server{
			Addr:         ":" + cfg.Server.AdminPort,
			Handler:      ui.NewAdminRouter(registry, ready),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
		}
		go serve(adminServer, "admin", logger, stop)
	}

	go serve(apiServer, "api", logger, stop)

	logger.Info().
		Str("port", cfg.Server.Port).
		Str("admin_port", cfg.Server.AdminPort).
		Bool("llm", cfg.AI.Enabled()).
		Bool("persistence", cfg.Database.Enabled()).
		Bool("auth", cfg.Auth.Enabled()).
		Str("planner", appContainer.Queries.PlannerName()).
		Msg("attrition server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("api server shutdown")
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("admin server shutdown")
		}
	}

	logger.Info().Msg("attrition server stopped")
}

func serve(srv *http.Server, name string, logger zerolog.Logger, stop context.CancelFunc) {
	logger.Info().Str("server", name).Str("address", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server exited")
		stop()
	}
}
