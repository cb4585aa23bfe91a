// Package store implements the repositories backing the chat-store
// services. Lookups by id signal absence with a nil entity and a nil
// error; only infrastructure failures are returned as errors.
package store

import (
	"context"
	"errors"
	"log/slog"

	"chat-store/internal/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sessionColumns are the columns a sparse update may assign. Unknown
// fields are dropped silently; user_id is fixed at creation and never
// settable.
var sessionColumns = map[string]struct{}{
	"name":        {},
	"is_favorite": {},
}

type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create persists a new session, populating the generated id. Name falls
// back to the default when unset; timestamps are filled in by the store.
func (s *SessionStore) Create(ctx context.Context, session *database.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Name == "" {
		session.Name = database.DefaultSessionName
	}
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *SessionStore) GetByID(ctx context.Context, sessionID uuid.UUID) (*database.Session, error) {
	var session database.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ListByUser returns the user's sessions with favorites surfacing above
// non-favorites regardless of recency, then most-recently-updated first.
func (s *SessionStore) ListByUser(ctx context.Context, userID uuid.UUID, skip, limit int) ([]database.Session, error) {
	var sessions []database.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_favorite DESC, updated_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// CountByUser counts all sessions for the user, ignoring any page window.
func (s *SessionStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&database.Session{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// Update applies a sparse set of field assignments and returns the updated
// session, or nil if no such row exists. updated_at is refreshed on every
// applied update.
func (s *SessionStore) Update(ctx context.Context, sessionID uuid.UUID, fields map[string]any) (*database.Session, error) {
	updates := map[string]any{}
	for column, value := range fields {
		if _, ok := sessionColumns[column]; ok {
			updates[column] = value
		}
	}
	if len(updates) == 0 {
		return s.GetByID(ctx, sessionID)
	}

	result := s.db.WithContext(ctx).
		Model(&database.Session{}).
		Where("id = ?", sessionID).
		Updates(updates)
	if result.Error != nil {
		slog.Error("error updating session", "session_id", sessionID, "error", result.Error)
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, sessionID)
}

// Delete removes the session and all of its messages as one atomic store
// operation, reporting whether a session row existed.
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var existed bool
	err := s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Delete(&database.Message{}, "session_id = ?", sessionID).Error; err != nil {
			return err
		}
		result := txn.Delete(&database.Session{}, "id = ?", sessionID)
		if result.Error != nil {
			return result.Error
		}
		existed = result.RowsAffected > 0
		return nil
	})
	return existed, err
}

// Exists probes for the session without materializing the full row.
func (s *SessionStore) Exists(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&database.Session{}).
		Where("id = ?", sessionID).
		Limit(1).
		Pluck("id", &ids).Error
	return len(ids) > 0, err
}
