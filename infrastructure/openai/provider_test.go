package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
)

func TestProvider_Complete_Success(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"content": "Hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	provider := NewProvider("test-key", WithBaseURL(server.URL))

	completion, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi there", completion.Content)
	assert.Equal(t, "gpt-4o-mini", completion.Model)
	assert.Equal(t, 15, completion.Usage.TotalTokens)

	assert.Equal(t, DefaultModel, captured.Model)
	assert.InDelta(t, defaultTemperature, captured.Temperature, 1e-9)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Nil(t, captured.ResponseFormat)
}

func TestProvider_CompleteJSON_SetsResponseFormat(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	provider := NewProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.CompleteJSON(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "extract"}},
	})

	require.NoError(t, err)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestProvider_Complete_MissingKey(t *testing.T) {
	provider := NewProvider("")

	_, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
	})

	pe, ok := chat.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, chat.ErrKindMissingCredential, pe.Kind)
	assert.Contains(t, pe.Message, "OPENAI_API_KEY")
}

func TestProvider_Complete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		expectedKind chat.ErrorKind
		expectedMsg  string
	}{
		{
			"invalid key", http.StatusUnauthorized,
			`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`,
			chat.ErrKindMissingCredential, "Incorrect API key",
		},
		{
			"rate limited", http.StatusTooManyRequests,
			`{"error": {"message": "Rate limit reached", "type": "tokens"}}`,
			chat.ErrKindRateLimited, "Rate limit",
		},
		{
			"bad request", http.StatusBadRequest,
			`{"error": {"message": "Unsupported parameter", "type": "invalid_request_error"}}`,
			chat.ErrKindProviderRejected, "Unsupported parameter",
		},
		{
			"upstream fault", http.StatusServiceUnavailable,
			`not even json`,
			chat.ErrKindNetworkFailure, "unexpected status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewProvider("test-key", WithBaseURL(server.URL))
			_, err := provider.Complete(context.Background(), &chat.CompletionRequest{
				Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
			})

			pe, ok := chat.AsProviderError(err)
			require.True(t, ok)
			assert.Equal(t, tt.expectedKind, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Contains(t, pe.Message, tt.expectedMsg)
		})
	}
}

func TestProvider_Complete_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	provider := NewProvider("test-key", WithBaseURL(server.URL))
	_, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
	})

	pe, ok := chat.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, chat.ErrKindNetworkFailure, pe.Kind)
	assert.Equal(t, 0, pe.StatusCode)
}

func TestProvider_Complete_SingleAttempt(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewProvider("test-key", WithBaseURL(server.URL))
	_, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestProvider_Complete_ModelAndTemperatureOverride(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"model":"gpt-4o","choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	provider := NewProvider("test-key", WithBaseURL(server.URL))
	_, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages:    []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
		Model:       "gpt-4o",
		Temperature: 0.2,
	})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", captured.Model)
	assert.InDelta(t, 0.2, captured.Temperature, 1e-9)
}
