package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "attrition/internal/errors"
	"attrition/ports"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com/v1"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

// Config holds the OpenAI-compatible endpoint settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// NewClient creates an LLM client based on config
func NewClient(config Config, logger zerolog.Logger) (ports.LLMClient, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("missing LLM API key")
	}

	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	return &OpenAIClient{
		APIKey:      config.APIKey,
		BaseURL:     baseURL,
		Timeout:     config.Timeout,
		Temperature: config.Temperature,
		MaxRetries:  config.MaxRetries,
		httpClient:  &http.Client{Timeout: config.Timeout},
		logger:      logger.With().Str("component", "llm_client").Logger(),
	}, nil
}

// MockLLMClient is a mock LLM client for testing
type MockLLMClient struct {
	Response string // Set this for testing
	Error    error  // Set this to simulate errors

	mu      sync.Mutex
	prompts []string
}

func (m *MockLLMClient) ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Error != nil {
		return "", m.Error
	}
	if m.Response != "" {
		return m.Response, nil
	}
	// Default mock response
	return "Diagnostic: Engagement has dropped below the team average.\n" +
		"Prescriptive: Schedule a career conversation with their manager.\n" +
		"Preventive: Run quarterly engagement pulse surveys.", nil
}

// Prompts returns the prompts received so far
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// StatusError is a non-2xx response from the provider
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether a retry may succeed
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

var (
	// ErrMissingChoices is returned when the response envelope has no message content
	ErrMissingChoices = errors.New("llm response missing choices")
	// ErrTransport wraps network failures before a response was received
	ErrTransport = errors.New("llm request failed")
)

// OpenAIClient implements ports.LLMClient for OpenAI-compatible chat completion APIs
// (OpenAI, DeepSeek).
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
	MaxRetries  int

	httpClient *http.Client
	logger     zerolog.Logger
}

func (c *OpenAIClient) ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("missing model")
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	// Chat Completions API (kept minimal: one system + one user message)
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type reqBody struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
	}
	body := reqBody{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: "You are a careful HR analytics assistant. Output exactly what the user asks for."},
			{Role: "user", Content: prompt},
		},
		Temperature: c.Temperature,
		MaxTokens:   maxTokens,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("retrying llm request")
		}
		content, err := c.do(ctx, raw)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return "", apperrors.ExternalServiceError("llm", lastErr)
}

func (c *OpenAIClient) do(ctx context.Context, raw []byte) (string, error) {
	client := c.httpClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respRaw), 512)}
	}

	if !gjson.ValidBytes(respRaw) {
		return "", fmt.Errorf("unmarshal response: invalid JSON envelope")
	}
	content := gjson.GetBytes(respRaw, "choices.0.message.content")
	if !content.Exists() || content.Type != gjson.String {
		return "", ErrMissingChoices
	}
	return content.String(), nil
}

// retryable allows one more attempt for transport failures and 429/5xx,
// never after the caller's context is done.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return errors.Is(err, ErrTransport)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
