package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"attrition/internal/errors"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Model    ModelConfig    `yaml:"model"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Session  SessionConfig  `yaml:"session"`
	Insights InsightsConfig `yaml:"insights"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string        `yaml:"port"`
	AdminPort       string        `yaml:"adminPort"`
	GinMode         string        `yaml:"ginMode"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// DatabaseConfig holds database connection settings. An empty URL disables persistence.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

// Enabled reports whether batches are persisted
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// AIConfig holds language model settings. An empty APIKey switches queries to
// the heuristic planner and insights to their degraded form.
type AIConfig struct {
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseURL"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"maxRetries"`
	PromptsDir  string        `yaml:"promptsDir"`
}

// Enabled reports whether a language model is configured
func (a AIConfig) Enabled() bool {
	return a.APIKey != ""
}

// ModelConfig locates the scoring model artifact
type ModelConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// AuthConfig holds login settings. An empty Secret disables authentication.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Users    string        `yaml:"users"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

// Enabled reports whether API routes require a token
func (a AuthConfig) Enabled() bool {
	return a.Secret != ""
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// SessionConfig bounds the in-memory batch cache
type SessionConfig struct {
	MaxBatches int `yaml:"maxBatches"`
}

// InsightsConfig bounds batch insight generation
type InsightsConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			AdminPort:       "9090",
			GinMode:         "release",
			AllowedOrigins:  []string{"http://localhost:5173"},
			GracefulTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Driver: "postgres"},
		AI: AIConfig{
			BaseURL:     "https://api.deepseek.com/v1",
			Model:       "deepseek-chat",
			Temperature: 0.7,
			MaxTokens:   600,
			Timeout:     30 * time.Second,
			MaxRetries:  1,
			PromptsDir:  "./prompts",
		},
		Model:    ModelConfig{Path: "./models/attrition.yaml", Watch: true},
		Auth:     AuthConfig{TokenTTL: 12 * time.Hour},
		Logging:  LoggingConfig{Level: "info"},
		Session:  SessionConfig{MaxBatches: 16},
		Insights: InsightsConfig{Concurrency: 4},
	}
}

// Load builds configuration from defaults, the optional YAML file named by
// CONFIG_FILE, then environment variables, and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to load configuration file")
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("parse %s: %v", path, err))
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvOrDefault("PORT", cfg.Server.Port)
	cfg.Server.AdminPort = getEnvOrDefault("ADMIN_PORT", cfg.Server.AdminPort)
	cfg.Server.GinMode = getEnvOrDefault("GIN_MODE", cfg.Server.GinMode)
	cfg.Server.AllowedOrigins = getEnvListOrDefault("ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Server.GracefulTimeout = getEnvDurationOrDefault("GRACEFUL_TIMEOUT", cfg.Server.GracefulTimeout)

	cfg.Database.Driver = getEnvOrDefault("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = getEnvOrDefault("DATABASE_URL", cfg.Database.URL)

	cfg.AI.APIKey = getEnvOrDefault("LLM_API_KEY", getEnvOrDefault("DEEPSEEK_API_KEY", cfg.AI.APIKey))
	cfg.AI.BaseURL = getEnvOrDefault("LLM_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.Model = getEnvOrDefault("LLM_MODEL", cfg.AI.Model)
	cfg.AI.Temperature = getEnvFloatOrDefault("LLM_TEMPERATURE", cfg.AI.Temperature)
	cfg.AI.MaxTokens = getEnvIntOrDefault("LLM_MAX_TOKENS", cfg.AI.MaxTokens)
	cfg.AI.Timeout = getEnvDurationOrDefault("LLM_TIMEOUT", cfg.AI.Timeout)
	cfg.AI.MaxRetries = getEnvIntOrDefault("LLM_MAX_RETRIES", cfg.AI.MaxRetries)
	cfg.AI.PromptsDir = getEnvOrDefault("PROMPTS_DIR", cfg.AI.PromptsDir)

	cfg.Model.Path = getEnvOrDefault("MODEL_PATH", cfg.Model.Path)
	cfg.Model.Watch = getEnvBoolOrDefault("MODEL_WATCH", cfg.Model.Watch)

	cfg.Auth.Secret = getEnvOrDefault("AUTH_SECRET", cfg.Auth.Secret)
	cfg.Auth.Users = getEnvOrDefault("AUTH_USERS", cfg.Auth.Users)
	cfg.Auth.TokenTTL = getEnvDurationOrDefault("AUTH_TOKEN_TTL", cfg.Auth.TokenTTL)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.JSON = getEnvBoolOrDefault("LOG_JSON", cfg.Logging.JSON)

	cfg.Session.MaxBatches = getEnvIntOrDefault("SESSION_MAX_BATCHES", cfg.Session.MaxBatches)
	cfg.Insights.Concurrency = getEnvIntOrDefault("INSIGHT_CONCURRENCY", cfg.Insights.Concurrency)
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if c.AI.Timeout <= 0 {
		return errors.ConfigInvalid("LLM timeout must be positive")
	}
	if c.AI.MaxTokens <= 0 {
		return errors.ConfigInvalid("LLM max tokens must be positive")
	}
	if c.AI.MaxRetries < 0 {
		return errors.ConfigInvalid("LLM max retries cannot be negative")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return errors.ConfigInvalid("LLM temperature must be between 0 and 2")
	}
	if c.Model.Path == "" {
		return errors.ConfigInvalid("model path is required")
	}
	if c.Auth.Enabled() && c.Auth.Users == "" {
		return errors.ConfigInvalid("AUTH_USERS is required when AUTH_SECRET is set")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.ConfigInvalid("token TTL must be positive")
	}
	if c.Session.MaxBatches <= 0 {
		return errors.ConfigInvalid("session max batches must be positive")
	}
	if c.Insights.Concurrency <= 0 {
		return errors.ConfigInvalid("insight concurrency must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
