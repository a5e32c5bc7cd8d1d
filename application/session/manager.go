package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
	"github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
	domsession "github.com/tolik-unicornrider/llm-bias-detector/domain/session"
)

// ErrSessionNotFound is returned when a submission references an unknown or
// already-evicted session.
var ErrSessionNotFound = errors.New("session not found")

const maxContentLength = 50000

// Manager orchestrates conversation sessions: it owns the in-memory
// transcripts, routes each submission to the selected provider adapter, and
// mirrors transcript changes to the persistence layer asynchronously.
//
// Submissions are serialized per session; a submit runs to completion before
// the next one for the same session starts. There is no retry and no timeout
// beyond what the provider's HTTP client enforces.
type Manager struct {
	providers map[chat.ProviderID]chat.ProviderPort
	recorder  persistence.HistoryRecorder // nil when persistence is disabled
	store     *expirable.LRU[string, *liveSession]
}

// liveSession pairs the session entity with its submission lock.
type liveSession struct {
	mu      sync.Mutex
	session *domsession.Session
}

// NewManager creates a manager holding at most capacity sessions in memory;
// sessions idle longer than ttl are evicted (the durable copy, if enabled,
// stays in the database). recorder may be nil.
func NewManager(providers map[chat.ProviderID]chat.ProviderPort, recorder persistence.HistoryRecorder, capacity int, ttl time.Duration) *Manager {
	if capacity <= 0 {
		capacity = 1024
	}
	onEvict := func(key string, _ *liveSession) {
		logrus.WithField("session_id", key).Debug("Session evicted from in-memory store")
	}
	return &Manager{
		providers: providers,
		recorder:  recorder,
		store:     expirable.NewLRU[string, *liveSession](capacity, onEvict, ttl),
	}
}

// Create starts a new empty session.
func (m *Manager) Create(ctx context.Context) *domsession.Session {
	s := domsession.New()
	m.store.Add(s.ID.String(), &liveSession{session: s})

	if m.recorder != nil {
		if err := m.recorder.RecordSession(ctx, persistence.SaveSessionEvent{
			SessionID: s.ID,
			Provider:  string(s.Provider),
			StartTime: s.StartTime,
		}); err != nil {
			logrus.WithError(err).WithField("session_id", s.ID).Warn("Failed to record session")
		}
	}

	logrus.WithField("session_id", s.ID).Info("Created new session")
	return s
}

// Transcript returns a snapshot of the session's messages in chronological
// order, suitable for rendering.
func (m *Manager) Transcript(sessionID string) ([]chat.Message, error) {
	live, ok := m.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	out := make([]chat.Message, len(live.session.Messages))
	copy(out, live.session.Messages)
	return out, nil
}

// Get returns a snapshot of the session entity, or false when the session is
// unknown or evicted.
func (m *Manager) Get(sessionID string) (*domsession.Session, bool) {
	live, ok := m.store.Get(sessionID)
	if !ok {
		return nil, false
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	snapshot := &domsession.Session{
		ID:        live.session.ID,
		StartTime: live.session.StartTime,
		Provider:  live.session.Provider,
		Messages:  make([]chat.Message, len(live.session.Messages)),
	}
	copy(snapshot.Messages, live.session.Messages)
	return snapshot, true
}

// Provider returns the provider selected for the session's next submission.
func (m *Manager) Provider(sessionID string) (chat.ProviderID, error) {
	live, ok := m.store.Get(sessionID)
	if !ok {
		return "", ErrSessionNotFound
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	return live.session.Provider, nil
}

// Submit appends userText to the transcript, invokes the adapter matching
// provider with the full transcript as context, appends the returned text as
// an assistant message, and returns that message.
//
// On adapter failure the user message remains appended, no assistant message
// is added, and the *ProviderError is returned for inline display.
func (m *Manager) Submit(ctx context.Context, sessionID, userText string, provider chat.ProviderID) (*chat.Message, error) {
	if userText == "" {
		return nil, errors.New("message content cannot be empty")
	}
	if len(userText) > maxContentLength {
		return nil, fmt.Errorf("message too long (%d chars, max %d)", len(userText), maxContentLength)
	}
	if !chat.ValidProvider(provider) {
		return nil, fmt.Errorf("unknown provider %q (must be %s or %s)", provider, chat.ProviderGPT, chat.ProviderGemini)
	}

	adapter, ok := m.providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", provider)
	}

	live, found := m.store.Get(sessionID)
	if !found {
		return nil, ErrSessionNotFound
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	userMsg := chat.Message{
		Role:      chat.RoleUser,
		Content:   userText,
		Timestamp: time.Now().UTC(),
	}
	live.session.Messages = append(live.session.Messages, userMsg)
	live.session.Provider = provider
	m.recordMessage(ctx, live.session.ID, userMsg)

	transcript := make([]chat.Message, len(live.session.Messages))
	copy(transcript, live.session.Messages)

	start := time.Now()
	completion, err := adapter.Complete(ctx, &chat.CompletionRequest{Messages: transcript})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"provider":   provider,
		}).Error("Provider call failed")
		return nil, err
	}

	assistantMsg := chat.Message{
		Role:      chat.RoleAssistant,
		Content:   completion.Content,
		Timestamp: time.Now().UTC(),
	}
	live.session.Messages = append(live.session.Messages, assistantMsg)
	m.recordMessage(ctx, live.session.ID, assistantMsg)

	logrus.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"provider":     provider,
		"model":        completion.Model,
		"total_tokens": completion.Usage.TotalTokens,
		"latency_ms":   time.Since(start).Milliseconds(),
	}).Info("Submission completed")

	return &assistantMsg, nil
}

// Reset clears the session's transcript. It always succeeds; resetting an
// unknown session is a no-op.
func (m *Manager) Reset(ctx context.Context, sessionID string) {
	live, ok := m.store.Get(sessionID)
	if !ok {
		return
	}

	live.mu.Lock()
	live.session.Messages = live.session.Messages[:0]
	id := live.session.ID
	live.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.RecordReset(ctx, persistence.ClearSessionEvent{SessionID: id}); err != nil {
			logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to record reset")
		}
	}

	logrus.WithField("session_id", sessionID).Info("Session reset")
}

func (m *Manager) recordMessage(ctx context.Context, sessionID uuid.UUID, msg chat.Message) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordMessage(ctx, persistence.SaveMessageEvent{
		SessionID: sessionID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to record message")
	}
}
