// Package openai implements the GPT-family provider adapter over the OpenAI
// chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.7
)

// Provider talks to the OpenAI chat completions endpoint. Every call is a
// single attempt; failures are classified into *chat.ProviderError and
// surfaced to the caller without retry.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// Option customizes a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (used by tests and proxies).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

// NewProvider builds a GPT adapter. The API key is captured once here and
// never re-read from the environment.
func NewProvider(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ID() chat.ProviderID { return chat.ProviderGPT }

// Wire types for the chat completions API.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the transcript and returns the assistant reply.
func (p *Provider) Complete(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	return p.complete(ctx, req, nil)
}

// CompleteJSON is Complete with the strict-JSON response format enabled.
func (p *Provider) CompleteJSON(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	return p.complete(ctx, req, &responseFormat{Type: "json_object"})
}

func (p *Provider) complete(ctx context.Context, req *chat.CompletionRequest, format *responseFormat) (*chat.Completion, error) {
	if p.apiKey == "" {
		return nil, chat.NewMissingCredential(chat.ProviderGPT, "OPENAI_API_KEY")
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	body := chatRequest{
		Model:          model,
		Messages:       make([]chatMessage, 0, len(req.Messages)),
		Temperature:    temperature,
		ResponseFormat: format,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &chat.ProviderError{
			Provider: chat.ProviderGPT,
			Kind:     chat.ErrKindProviderRejected,
			Message:  "failed to encode request",
			Cause:    err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &chat.ProviderError{
			Provider: chat.ProviderGPT,
			Kind:     chat.ErrKindNetworkFailure,
			Message:  "failed to build request",
			Cause:    err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &chat.ProviderError{
			Provider: chat.ProviderGPT,
			Kind:     chat.ErrKindNetworkFailure,
			Message:  "request failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &chat.ProviderError{
			Provider:   chat.ProviderGPT,
			Kind:       chat.ErrKindNetworkFailure,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response",
			Cause:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.classifyError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &chat.ProviderError{
			Provider:   chat.ProviderGPT,
			Kind:       chat.ErrKindNetworkFailure,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Cause:      err,
		}
	}
	if len(parsed.Choices) == 0 {
		return nil, &chat.ProviderError{
			Provider:   chat.ProviderGPT,
			Kind:       chat.ErrKindProviderRejected,
			StatusCode: resp.StatusCode,
			Message:    "response contained no choices",
		}
	}

	logrus.WithFields(logrus.Fields{
		"provider":      chat.ProviderGPT,
		"model":         parsed.Model,
		"total_tokens":  parsed.Usage.TotalTokens,
		"finish_reason": parsed.Choices[0].FinishReason,
	}).Debug("OpenAI completion")

	return &chat.Completion{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: chat.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

func (p *Provider) classifyError(status int, raw []byte) *chat.ProviderError {
	message := fmt.Sprintf("unexpected status %d", status)
	var parsed apiError
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	return &chat.ProviderError{
		Provider:   chat.ProviderGPT,
		Kind:       chat.KindForStatus(status),
		StatusCode: status,
		Message:    message,
	}
}
