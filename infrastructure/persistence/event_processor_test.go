package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
)

type MockSessionRepo struct{ mock.Mock }

func (m *MockSessionRepo) Create(ctx context.Context, e *persistence.SessionRecord) error {
	return m.Called(e).Error(0)
}
func (m *MockSessionRepo) Update(ctx context.Context, e *persistence.SessionRecord) error {
	return m.Called(e).Error(0)
}
func (m *MockSessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*persistence.SessionRecord, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*persistence.SessionRecord), args.Error(1)
}
func (m *MockSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(id).Error(0)
}
func (m *MockSessionRepo) FindByIDWithMessages(ctx context.Context, id uuid.UUID) (*persistence.SessionRecord, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*persistence.SessionRecord), args.Error(1)
}
func (m *MockSessionRepo) FindRecent(ctx context.Context, limit int) ([]*persistence.SessionRecord, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*persistence.SessionRecord), args.Error(1)
}

type MockMessageRepo struct{ mock.Mock }

func (m *MockMessageRepo) Create(ctx context.Context, e *persistence.MessageRecord) error {
	return m.Called(e).Error(0)
}
func (m *MockMessageRepo) Update(ctx context.Context, e *persistence.MessageRecord) error {
	return m.Called(e).Error(0)
}
func (m *MockMessageRepo) FindByID(ctx context.Context, id uuid.UUID) (*persistence.MessageRecord, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*persistence.MessageRecord), args.Error(1)
}
func (m *MockMessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(id).Error(0)
}
func (m *MockMessageRepo) FindBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*persistence.MessageRecord, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*persistence.MessageRecord), args.Error(1)
}
func (m *MockMessageRepo) DeleteBySessionID(ctx context.Context, sessionID uuid.UUID) error {
	return m.Called(sessionID).Error(0)
}

type MockReportRepo struct{ mock.Mock }

func (m *MockReportRepo) Create(ctx context.Context, e *persistence.ReportRecord) error {
	return m.Called(e).Error(0)
}
func (m *MockReportRepo) Update(ctx context.Context, e *persistence.ReportRecord) error {
	return m.Called(e).Error(0)
}
func (m *MockReportRepo) FindByID(ctx context.Context, id uuid.UUID) (*persistence.ReportRecord, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*persistence.ReportRecord), args.Error(1)
}
func (m *MockReportRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(id).Error(0)
}
func (m *MockReportRepo) FindRecent(ctx context.Context, limit int) ([]*persistence.ReportRecord, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*persistence.ReportRecord), args.Error(1)
}
func (m *MockReportRepo) FindByStatus(ctx context.Context, status persistence.ReportStatus, limit int) ([]*persistence.ReportRecord, error) {
	args := m.Called(status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*persistence.ReportRecord), args.Error(1)
}

func newTestProcessor(t *testing.T) (*EventProcessor, *MockSessionRepo, *MockMessageRepo, *MockReportRepo) {
	t.Helper()
	sessions := &MockSessionRepo{}
	messages := &MockMessageRepo{}
	reports := &MockReportRepo{}
	processor := NewEventProcessor(sessions, messages, reports)
	require.NoError(t, processor.Start(context.Background()))
	return processor, sessions, messages, reports
}

func TestEventProcessor_ProcessesSessionAndMessageEvents(t *testing.T) {
	processor, sessions, messages, _ := newTestProcessor(t)

	sessionID := uuid.New()
	sessions.On("Create", mock.MatchedBy(func(r *persistence.SessionRecord) bool {
		return r.ID == sessionID && r.Provider == "gpt"
	})).Return(nil).Once()
	messages.On("Create", mock.MatchedBy(func(r *persistence.MessageRecord) bool {
		return r.SessionID == sessionID && r.Role == "user" && r.Content == "Hello"
	})).Return(nil).Once()

	require.NoError(t, processor.ProcessEvent(persistence.SaveSessionEvent{
		SessionID: sessionID,
		Provider:  "gpt",
		StartTime: time.Now().UTC(),
	}))
	require.NoError(t, processor.ProcessEvent(persistence.SaveMessageEvent{
		SessionID: sessionID,
		Role:      "user",
		Content:   "Hello",
		Timestamp: time.Now().UTC(),
	}))

	require.NoError(t, processor.Stop())

	sessions.AssertExpectations(t)
	messages.AssertExpectations(t)
	assert.Equal(t, int64(2), processor.Health().ProcessedCount)
}

func TestEventProcessor_ClearEventDeletesMessages(t *testing.T) {
	processor, _, messages, _ := newTestProcessor(t)

	sessionID := uuid.New()
	messages.On("DeleteBySessionID", sessionID).Return(nil).Once()

	require.NoError(t, processor.ProcessEvent(persistence.ClearSessionEvent{SessionID: sessionID}))
	require.NoError(t, processor.Stop())

	messages.AssertExpectations(t)
}

func TestEventProcessor_ReportEvent(t *testing.T) {
	processor, _, _, reports := newTestProcessor(t)

	reportID := uuid.New()
	reports.On("Create", mock.MatchedBy(func(r *persistence.ReportRecord) bool {
		return r.ID == reportID && r.Status == persistence.ReportStatusCompleted
	})).Return(nil).Once()

	require.NoError(t, processor.ProcessEvent(persistence.SaveReportEvent{
		ReportID: reportID,
		Provider: "gpt",
		Query:    "q",
		Runs:     5,
		Status:   persistence.ReportStatusCompleted,
	}))
	require.NoError(t, processor.Stop())

	reports.AssertExpectations(t)
}

func TestEventProcessor_FailureCountsAsError(t *testing.T) {
	processor, sessions, _, _ := newTestProcessor(t)

	sessions.On("Create", mock.Anything).Return(assert.AnError).Once()

	require.NoError(t, processor.ProcessEvent(persistence.SaveSessionEvent{SessionID: uuid.New()}))
	require.NoError(t, processor.Stop())

	health := processor.Health()
	assert.Equal(t, int64(0), health.ProcessedCount)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.False(t, health.IsRunning)
}

func TestEventProcessor_RejectsWhenStopped(t *testing.T) {
	processor := NewEventProcessor(&MockSessionRepo{}, &MockMessageRepo{}, &MockReportRepo{})

	err := processor.ProcessEvent(persistence.SaveSessionEvent{SessionID: uuid.New()})
	assert.Error(t, err)

	// Stopping a never-started processor is a no-op.
	assert.NoError(t, processor.Stop())
}

func TestEventProcessor_RecorderFacade(t *testing.T) {
	processor, sessions, messages, reports := newTestProcessor(t)
	recorder := NewRecorder(processor)

	sessionID := uuid.New()
	sessions.On("Create", mock.Anything).Return(nil).Once()
	messages.On("Create", mock.Anything).Return(nil).Once()
	messages.On("DeleteBySessionID", sessionID).Return(nil).Once()
	reports.On("Create", mock.Anything).Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, recorder.RecordSession(ctx, persistence.SaveSessionEvent{SessionID: sessionID}))
	require.NoError(t, recorder.RecordMessage(ctx, persistence.SaveMessageEvent{SessionID: sessionID}))
	require.NoError(t, recorder.RecordReset(ctx, persistence.ClearSessionEvent{SessionID: sessionID}))
	require.NoError(t, recorder.RecordReport(ctx, persistence.SaveReportEvent{ReportID: uuid.New()}))
	require.NoError(t, processor.Stop())

	sessions.AssertExpectations(t)
	messages.AssertExpectations(t)
	reports.AssertExpectations(t)
}
