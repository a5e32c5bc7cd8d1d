package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
)

// baseRepository provides the generic CRUD operations shared by all record
// types.
type baseRepository[T any] struct {
	db *gorm.DB
}

func (r *baseRepository[T]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

func (r *baseRepository[T]) Update(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Save(entity).Error
}

func (r *baseRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	var entity T
	return r.db.WithContext(ctx).Delete(&entity, "id = ?", id).Error
}

// sessionRepository implements persistence.SessionRepository.
type sessionRepository struct {
	baseRepository[persistence.SessionRecord]
}

// NewSessionRepository builds a session repository over db.
func NewSessionRepository(db *gorm.DB) persistence.SessionRepository {
	return &sessionRepository{baseRepository[persistence.SessionRecord]{db: db}}
}

func (r *sessionRepository) FindByIDWithMessages(ctx context.Context, id uuid.UUID) (*persistence.SessionRecord, error) {
	var record persistence.SessionRecord
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC")
		}).
		First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *sessionRepository) FindRecent(ctx context.Context, limit int) ([]*persistence.SessionRecord, error) {
	var records []*persistence.SessionRecord
	err := r.db.WithContext(ctx).
		Order("start_time DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// messageRepository implements persistence.MessageRepository.
type messageRepository struct {
	baseRepository[persistence.MessageRecord]
}

// NewMessageRepository builds a message repository over db.
func NewMessageRepository(db *gorm.DB) persistence.MessageRepository {
	return &messageRepository{baseRepository[persistence.MessageRecord]{db: db}}
}

func (r *messageRepository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*persistence.MessageRecord, error) {
	var records []*persistence.MessageRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&records).Error
	return records, err
}

func (r *messageRepository) DeleteBySessionID(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&persistence.MessageRecord{}).Error
}

// reportRepository implements persistence.ReportRepository.
type reportRepository struct {
	baseRepository[persistence.ReportRecord]
}

// NewReportRepository builds a report repository over db.
func NewReportRepository(db *gorm.DB) persistence.ReportRepository {
	return &reportRepository{baseRepository[persistence.ReportRecord]{db: db}}
}

func (r *reportRepository) FindRecent(ctx context.Context, limit int) ([]*persistence.ReportRecord, error) {
	var records []*persistence.ReportRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *reportRepository) FindByStatus(ctx context.Context, status persistence.ReportStatus, limit int) ([]*persistence.ReportRecord, error) {
	var records []*persistence.ReportRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
