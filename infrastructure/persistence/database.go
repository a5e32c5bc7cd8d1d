// Package persistence implements the durable store: a SQLite database behind
// gorm repositories, fed asynchronously by an event processor so the chat
// path never blocks on disk.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
)

// Manager owns the database connection and hands out repositories.
type Manager struct {
	db *gorm.DB

	sessions persistence.SessionRepository
	messages persistence.MessageRepository
	reports  persistence.ReportRepository
}

// NewManager returns an unconnected manager; call Connect before use.
func NewManager() *Manager {
	return &Manager{}
}

// Connect opens the SQLite database at dsn and prepares the repositories.
func (m *Manager) Connect(ctx context.Context, dsn string) error {
	gormLog := gormlogger.New(
		logrus.StandardLogger(),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormLog,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql.DB: %w", err)
	}
	// SQLite handles one writer at a time.
	sqlDB.SetMaxOpenConns(1)

	m.db = db
	m.sessions = NewSessionRepository(db)
	m.messages = NewMessageRepository(db)
	m.reports = NewReportRepository(db)

	logrus.WithField("dsn", dsn).Info("Database connected")
	return nil
}

// Migrate creates or updates the schema.
func (m *Manager) Migrate() error {
	if m.db == nil {
		return fmt.Errorf("database not connected")
	}
	if err := m.db.AutoMigrate(
		&persistence.SessionRecord{},
		&persistence.MessageRecord{},
		&persistence.ReportRecord{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.Info("Database migrated")
	return nil
}

// Health pings the database.
func (m *Manager) Health(ctx context.Context) error {
	if m.db == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetRepositories returns the prepared repositories.
func (m *Manager) GetRepositories() (persistence.SessionRepository, persistence.MessageRepository, persistence.ReportRepository) {
	return m.sessions, m.messages, m.reports
}
