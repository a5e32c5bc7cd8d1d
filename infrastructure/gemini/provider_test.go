package gemini

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
	var captured generateRequest
	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Hi there"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 3, "totalTokenCount": 11},
			"modelVersion": "gemini-2.0-flash"
		}`))
	}))
	defer server.Close()

	provider := NewProvider("test-key", WithBaseURL(server.URL))

	completion, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi there", completion.Content)
	assert.Equal(t, "gemini-2.0-flash", completion.Model)
	assert.Equal(t, 11, completion.Usage.TotalTokens)
	assert.Equal(t, "/models/"+DefaultModel+":generateContent", capturedPath)
	assert.InDelta(t, defaultTemperature, captured.GenerationConfig.Temperature, 1e-9)
}

func TestConvertRequest_RoleMapping(t *testing.T) {
	req := convertRequest([]chat.Message{
		{Role: chat.RoleSystem, Content: "be terse"},
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
		{Role: chat.RoleUser, Content: "again"},
	})

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "be terse", req.SystemInstruction.Parts[0].Text)

	require.Len(t, req.Contents, 3)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.Equal(t, "hello", req.Contents[1].Parts[0].Text)
	assert.Equal(t, "user", req.Contents[2].Role)
}

func TestProvider_CompleteJSON_SetsMimeType(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`))
	}))
	defer server.Close()

	provider := NewProvider("test-key", WithBaseURL(server.URL))
	_, err := provider.CompleteJSON(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "extract"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
}

func TestProvider_Complete_MissingKey(t *testing.T) {
	provider := NewProvider("")

	_, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
	})

	pe, ok := chat.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, chat.ErrKindMissingCredential, pe.Kind)
	assert.Contains(t, pe.Message, "GEMINI_API_KEY")
}

func TestProvider_Complete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		expectedKind chat.ErrorKind
	}{
		{"bad key", http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`, chat.ErrKindMissingCredential},
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`, chat.ErrKindRateLimited},
		{"blocked", http.StatusBadRequest, `{"error":{"code":400,"message":"Invalid argument","status":"INVALID_ARGUMENT"}}`, chat.ErrKindProviderRejected},
		{"upstream fault", http.StatusInternalServerError, `oops`, chat.ErrKindNetworkFailure},
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
		})
	}
}

func TestProvider_Complete_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	provider := NewProvider("test-key", WithBaseURL(server.URL))
	_, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
	})

	pe, ok := chat.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, chat.ErrKindProviderRejected, pe.Kind)
}

func TestProvider_Complete_ModelOverrideInPath(t *testing.T) {
	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	provider := NewProvider("test-key", WithBaseURL(server.URL))
	_, err := provider.Complete(context.Background(), &chat.CompletionRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "Hello"}},
		Model:    "gemini-2.0-pro",
	})

	require.NoError(t, err)
	assert.Equal(t, "/models/gemini-2.0-pro:generateContent", capturedPath)
}
