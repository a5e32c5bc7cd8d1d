package persistence

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the generic repository interface using Go generics
type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionRepository defines operations specific to session records
type SessionRepository interface {
	Repository[SessionRecord]

	FindByIDWithMessages(ctx context.Context, id uuid.UUID) (*SessionRecord, error)
	FindRecent(ctx context.Context, limit int) ([]*SessionRecord, error)
}

// MessageRepository defines operations specific to message records
type MessageRepository interface {
	Repository[MessageRecord]

	FindBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*MessageRecord, error)
	DeleteBySessionID(ctx context.Context, sessionID uuid.UUID) error
}

// ReportRepository defines operations specific to analysis reports
type ReportRepository interface {
	Repository[ReportRecord]

	FindRecent(ctx context.Context, limit int) ([]*ReportRecord, error)
	FindByStatus(ctx context.Context, status ReportStatus, limit int) ([]*ReportRecord, error)
}

// EventProcessor processes persistence events asynchronously so that a slow
// or failing database never blocks a chat submission.
type EventProcessor interface {
	Start(ctx context.Context) error
	Stop() error
	ProcessEvent(event interface{}) error
	Health() ProcessorHealth
}

// ProcessorHealth represents the health status of the event processor
type ProcessorHealth struct {
	IsRunning      bool  `json:"is_running"`
	QueueSize      int   `json:"queue_size"`
	ProcessedCount int64 `json:"processed_count"`
	ErrorCount     int64 `json:"error_count"`
}

// HistoryRecorder is the write-behind facade used by the session manager and
// the analyzer. Implementations must never return an error that should abort
// the chat path; enqueue failures are logged and dropped.
type HistoryRecorder interface {
	RecordSession(ctx context.Context, event SaveSessionEvent) error
	RecordMessage(ctx context.Context, event SaveMessageEvent) error
	RecordReset(ctx context.Context, event ClearSessionEvent) error
	RecordReport(ctx context.Context, event SaveReportEvent) error
}

// DatabaseManager defines the interface for database management operations
type DatabaseManager interface {
	Connect(ctx context.Context, dsn string) error
	Close() error
	Migrate() error
	Health(ctx context.Context) error
	GetRepositories() (SessionRepository, MessageRepository, ReportRepository)
}
