// Package gemini implements the Gemini-family provider adapter over the
// generateContent API.
package gemini

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
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.7
)

// Provider talks to the Gemini generateContent endpoint. Every call is a
// single attempt; failures are classified into *chat.ProviderError.
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

// NewProvider builds a Gemini adapter. The API key is captured once here and
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

func (p *Provider) ID() chat.ProviderID { return chat.ProviderGemini }

// Wire types for the generateContent API.
type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete sends the transcript and returns the assistant reply.
func (p *Provider) Complete(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	return p.complete(ctx, req, "")
}

// CompleteJSON is Complete with the JSON response mime type enforced.
func (p *Provider) CompleteJSON(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	return p.complete(ctx, req, "application/json")
}

func (p *Provider) complete(ctx context.Context, req *chat.CompletionRequest, mimeType string) (*chat.Completion, error) {
	if p.apiKey == "" {
		return nil, chat.NewMissingCredential(chat.ProviderGemini, "GEMINI_API_KEY")
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	body := convertRequest(req.Messages)
	body.GenerationConfig = generationConfig{Temperature: temperature, ResponseMimeType: mimeType}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &chat.ProviderError{
			Provider: chat.ProviderGemini,
			Kind:     chat.ErrKindProviderRejected,
			Message:  "failed to encode request",
			Cause:    err,
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &chat.ProviderError{
			Provider: chat.ProviderGemini,
			Kind:     chat.ErrKindNetworkFailure,
			Message:  "failed to build request",
			Cause:    err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &chat.ProviderError{
			Provider: chat.ProviderGemini,
			Kind:     chat.ErrKindNetworkFailure,
			Message:  "request failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &chat.ProviderError{
			Provider:   chat.ProviderGemini,
			Kind:       chat.ErrKindNetworkFailure,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response",
			Cause:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.classifyError(resp.StatusCode, raw)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &chat.ProviderError{
			Provider:   chat.ProviderGemini,
			Kind:       chat.ErrKindNetworkFailure,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Cause:      err,
		}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &chat.ProviderError{
			Provider:   chat.ProviderGemini,
			Kind:       chat.ErrKindProviderRejected,
			StatusCode: resp.StatusCode,
			Message:    "response contained no candidates",
		}
	}

	replyModel := parsed.ModelVersion
	if replyModel == "" {
		replyModel = model
	}

	logrus.WithFields(logrus.Fields{
		"provider":      chat.ProviderGemini,
		"model":         replyModel,
		"total_tokens":  parsed.UsageMetadata.TotalTokenCount,
		"finish_reason": parsed.Candidates[0].FinishReason,
	}).Debug("Gemini completion")

	var text string
	for _, pt := range parsed.Candidates[0].Content.Parts {
		text += pt.Text
	}

	return &chat.Completion{
		Content: text,
		Model:   replyModel,
		Usage: chat.Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// convertRequest maps the neutral transcript to the Gemini format: assistant
// messages become role "model", and system messages are hoisted into the
// systemInstruction field (Gemini rejects "system" inside contents).
func convertRequest(messages []chat.Message) generateRequest {
	var req generateRequest
	req.Contents = make([]content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			if req.SystemInstruction == nil {
				req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			} else {
				req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, part{Text: m.Content})
			}
		case chat.RoleAssistant:
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	return req
}

func (p *Provider) classifyError(status int, raw []byte) *chat.ProviderError {
	message := fmt.Sprintf("unexpected status %d", status)
	var parsed apiError
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	return &chat.ProviderError{
		Provider:   chat.ProviderGemini,
		Kind:       chat.KindForStatus(status),
		StatusCode: status,
		Message:    message,
	}
}
