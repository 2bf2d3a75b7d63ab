package main

import (
	"context"
	"os"
	"time"

	"attrition/internal/config"
	"attrition/internal/logging"
	"attrition/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// migrate applies the batch and insight schema without starting the server.
// Usage: migrate [database_url]
func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", false)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.JSON)

	if len(os.Args) > 1 {
		cfg.Database.URL = os.Args[1]
	}
	if !cfg.Database.Enabled() {
		logger.Fatal().Msg("usage: migrate <database_url> (or set DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	defer db.Close()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	versions, err := migration.AppliedVersions(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read schema versions")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Strs("applied", versions).Msg("schema up to date")
}
