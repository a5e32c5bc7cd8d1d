package persistence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRecord stores one chat session.
type SessionRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Provider  string    `gorm:"type:varchar(32);not null;index" json:"provider"`
	StartTime time.Time `gorm:"not null" json:"start_time"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Messages []MessageRecord `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// MessageRecord stores one transcript entry.
type MessageRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ReportStatus represents the lifecycle of an analysis report.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusFailed    ReportStatus = "failed"
)

// ReportRecord stores the outcome of one analysis run: the raw sampled
// responses, the response-to-options mappings, and the computed shares.
type ReportRecord struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	Provider     string          `gorm:"type:varchar(32);not null;index" json:"provider"`
	Model        string          `gorm:"type:varchar(255);not null" json:"model"`
	Query        string          `gorm:"type:text;not null" json:"query"`
	Runs         int             `gorm:"not null" json:"runs"`
	Status       ReportStatus    `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ResponsesRaw json.RawMessage `gorm:"type:text" json:"responses,omitempty"`
	MappingsRaw  json.RawMessage `gorm:"type:text" json:"mappings,omitempty"`
	SharesRaw    json.RawMessage `gorm:"type:text" json:"shares,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *SessionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (m *MessageRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (r *ReportRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (SessionRecord) TableName() string { return "chat_sessions" }
func (MessageRecord) TableName() string { return "chat_messages" }
func (ReportRecord) TableName() string  { return "analysis_reports" }

// EventType represents the type of persistence event.
type EventType string

const (
	EventTypeSaveSession  EventType = "save_session"
	EventTypeSaveMessage  EventType = "save_message"
	EventTypeClearSession EventType = "clear_session"
	EventTypeSaveReport   EventType = "save_report"
	EventTypeUnknown      EventType = "unknown"
)

// TypeOf classifies a persistence event for logging and metrics.
func TypeOf(event interface{}) EventType {
	switch event.(type) {
	case SaveSessionEvent:
		return EventTypeSaveSession
	case SaveMessageEvent:
		return EventTypeSaveMessage
	case ClearSessionEvent:
		return EventTypeClearSession
	case SaveReportEvent:
		return EventTypeSaveReport
	default:
		return EventTypeUnknown
	}
}

// SaveSessionEvent records a newly created session.
type SaveSessionEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Provider  string    `json:"provider"`
	StartTime time.Time `json:"start_time"`
}

// SaveMessageEvent appends a transcript entry to the durable copy.
type SaveMessageEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ClearSessionEvent removes all stored messages for a session after a reset.
type ClearSessionEvent struct {
	SessionID uuid.UUID `json:"session_id"`
}

// SaveReportEvent stores a finished (or failed) analysis report.
type SaveReportEvent struct {
	ReportID  uuid.UUID       `json:"report_id"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	Query     string          `json:"query"`
	Runs      int             `json:"runs"`
	Status    ReportStatus    `json:"status"`
	Responses json.RawMessage `json:"responses,omitempty"`
	Mappings  json.RawMessage `json:"mappings,omitempty"`
	Shares    json.RawMessage `json:"shares,omitempty"`
}
