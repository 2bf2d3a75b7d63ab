package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "attrition/internal/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, retries int) *OpenAIClient {
	t.Helper()
	c, err := NewClient(Config{APIKey: "test-key", BaseURL: url, Temperature: DefaultTemperature, Timeout: 2 * time.Second, MaxRetries: retries}, zerolog.Nop())
	require.NoError(t, err)
	return c.(*OpenAIClient)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, zerolog.Nop())
	assert.Error(t, err)

	c, err := NewClient(Config{APIKey: "k"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.(*OpenAIClient).BaseURL)
}

func TestChatCompletionSendsRequestAndExtractsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "deepseek-chat", body["model"])
		assert.Equal(t, 0.7, body["temperature"])
		assert.Equal(t, float64(200), body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"{\"department\":\"Sales\"}"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1/", 0)
	out, err := c.ChatCompletion(context.Background(), DefaultModel, "hello", 200)
	require.NoError(t, err)
	assert.Equal(t, `{"department":"Sales"}`, out)
}

func TestChatCompletionMissingChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 1).ChatCompletion(context.Background(), DefaultModel, "hello", 0)
	assert.ErrorIs(t, err, ErrMissingChoices)
}

func TestChatCompletionRetriesTransientStatusOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL, 1).ChatCompletion(context.Background(), DefaultModel, "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatCompletionDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 1).ChatCompletion(context.Background(), DefaultModel, "hello", 0)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, apperrors.CodeExternalService, apperrors.GetCode(err))
}

func TestChatCompletionHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv.URL, 1).ChatCompletion(ctx, DefaultModel, "hello", 0)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestMockLLMClient(t *testing.T) {
	m := &MockLLMClient{}
	out, err := m.ChatCompletion(context.Background(), "m", "p", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "Preventive:")
	assert.Equal(t, []string{"p"}, m.Prompts())

	m = &MockLLMClient{Error: errors.New("quota")}
	_, err = m.ChatCompletion(context.Background(), "m", "p", 0)
	assert.Error(t, err)
}
