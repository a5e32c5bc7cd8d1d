package chat

import "time"

// Core chat entities independent of frameworks and vendors

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRole reports whether r is one of the supported roles.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Message is a single transcript entry. Messages are immutable once appended;
// ordering within a transcript is strictly chronological.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ProviderID selects which hosted model family handles a request.
type ProviderID string

const (
	ProviderGPT    ProviderID = "gpt"
	ProviderGemini ProviderID = "gemini"
)

// ValidProvider reports whether id names a known provider.
func ValidProvider(id ProviderID) bool {
	return id == ProviderGPT || id == ProviderGemini
}

// CompletionRequest is the provider-neutral request shape. Each adapter
// converts it to its own wire format at call time, so a transcript built
// against one provider can be replayed against the other.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Usage carries token accounting reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the provider-neutral reply.
type Completion struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
