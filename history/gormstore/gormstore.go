// Package gormstore provides a durable core.HistoryStore backed by gorm.
// The default constructor opens an embedded SQLite database; any gorm
// dialector (Postgres, MySQL) can be supplied instead via NewFromDB.
package gormstore

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/choruschat/chorus/core"
)

// messageRow is the persisted shape of one conversation message.
type messageRow struct {
	ID         string    `gorm:"primaryKey;size:191"`
	SessionID  string    `gorm:"index;size:191;not null"`
	RequestID  string    `gorm:"size:191"`
	BackendKey string    `gorm:"size:191"`
	Role       string    `gorm:"size:32;not null"`
	Content    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (messageRow) TableName() string { return "messages" }

func (r messageRow) toMessage() core.Message {
	return core.Message{
		ID:         r.ID,
		Role:       core.Role(r.Role),
		Content:    r.Content,
		SessionID:  r.SessionID,
		RequestID:  r.RequestID,
		BackendKey: r.BackendKey,
		Timestamp:  r.CreatedAt,
	}
}

func rowFromMessage(msg core.Message) messageRow {
	return messageRow{
		ID:         msg.ID,
		SessionID:  msg.SessionID,
		RequestID:  msg.RequestID,
		BackendKey: msg.BackendKey,
		Role:       string(msg.Role),
		Content:    msg.Content,
		CreatedAt:  msg.Timestamp,
	}
}

// Store is a gorm-backed HistoryStore. SQLite serializes writes internally,
// so concurrent appends from multiple backend tasks are safe.
type Store struct {
	db *gorm.DB
}

// Open creates a Store on an embedded SQLite database at the given path
// (":memory:" works for tests) and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return NewFromDB(db)
}

// NewFromDB wraps an existing gorm handle and migrates the schema.
func NewFromDB(db *gorm.DB) (*Store, error) {
	store := &Store{db: db}
	if err := db.AutoMigrate(&messageRow{}); err != nil {
		return nil, fmt.Errorf("migrate history store: %w", err)
	}
	return store, nil
}

// Append persists one message.
func (s *Store) Append(sessionID string, msg core.Message) error {
	msg.SessionID = sessionID
	row := rowFromMessage(msg)
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// GetAll returns the session's messages ordered by creation time. Ties are
// broken by id so the order is stable across reads.
func (s *Store) GetAll(sessionID string) ([]core.Message, error) {
	var rows []messageRow
	err := s.db.
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	msgs := make([]core.Message, len(rows))
	for i, row := range rows {
		msgs[i] = row.toMessage()
	}
	return msgs, nil
}

// Clear deletes every message of the session.
func (s *Store) Clear(sessionID string) error {
	if err := s.db.Where("session_id = ?", sessionID).Delete(&messageRow{}).Error; err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
