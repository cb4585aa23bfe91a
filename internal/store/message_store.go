package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chat-store/internal/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// messageColumns are the columns a sparse update may assign; session_id,
// sender, and the logical timestamp are fixed at creation.
var messageColumns = map[string]struct{}{
	"content":         {},
	"status":          {},
	"partial_content": {},
	"error_message":   {},
}

type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Create persists a new message. The id is generated when unset, status
// defaults to pending, and the logical timestamp defaults to creation time.
func (s *MessageStore) Create(ctx context.Context, message *database.Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.Status == "" {
		message.Status = database.StatusPending
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(message).Error
}

func (s *MessageStore) GetByID(ctx context.Context, messageID uuid.UUID) (*database.Message, error) {
	var message database.Message
	if err := s.db.WithContext(ctx).First(&message, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// ListBySession returns the session's messages in chronological order,
// earliest first.
func (s *MessageStore) ListBySession(ctx context.Context, sessionID uuid.UUID, skip, limit int) ([]database.Message, error) {
	var messages []database.Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Offset(skip).
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *MessageStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&database.Message{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

// GetLatestBySession returns the message with the greatest logical
// timestamp, or nil if the session has no messages.
func (s *MessageStore) GetLatestBySession(ctx context.Context, sessionID uuid.UUID) (*database.Message, error) {
	var message database.Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// Update applies a sparse set of field assignments, same semantics as the
// session update: unknown fields are ignored, nil means the row is gone.
func (s *MessageStore) Update(ctx context.Context, messageID uuid.UUID, fields map[string]any) (*database.Message, error) {
	updates := map[string]any{}
	for column, value := range fields {
		if _, ok := messageColumns[column]; ok {
			updates[column] = value
		}
	}
	if len(updates) == 0 {
		return s.GetByID(ctx, messageID)
	}

	result := s.db.WithContext(ctx).
		Model(&database.Message{}).
		Where("id = ?", messageID).
		Updates(updates)
	if result.Error != nil {
		slog.Error("error updating message", "message_id", messageID, "error", result.Error)
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, messageID)
}

func (s *MessageStore) Delete(ctx context.Context, messageID uuid.UUID) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&database.Message{}, "id = ?", messageID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *MessageStore) Exists(ctx context.Context, messageID uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&database.Message{}).
		Where("id = ?", messageID).
		Limit(1).
		Pluck("id", &ids).Error
	return len(ids) > 0, err
}

// ExistsInSession reports whether the session has any messages at all.
func (s *MessageStore) ExistsInSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&database.Message{}).
		Where("session_id = ?", sessionID).
		Limit(1).
		Pluck("id", &ids).Error
	return len(ids) > 0, err
}
