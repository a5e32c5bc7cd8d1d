// Package session defines the conversation session entity: an identified,
// append-only transcript owned by exactly one browser session.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
)

// Session is an ordered transcript of exchanged messages plus the provider
// selected for the next submission. The transcript is append-only during the
// session's lifetime and cleared only by an explicit reset.
type Session struct {
	ID        uuid.UUID       `json:"id"`
	StartTime time.Time       `json:"start_time"`
	Provider  chat.ProviderID `json:"provider"`
	Messages  []chat.Message  `json:"messages"`
}

// New creates an empty session defaulting to the GPT provider.
func New() *Session {
	return &Session{
		ID:        uuid.New(),
		StartTime: time.Now().UTC(),
		Provider:  chat.ProviderGPT,
		Messages:  []chat.Message{},
	}
}
