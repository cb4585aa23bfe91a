// Package service enforces the business rules over the session and
// message repositories. Domain-rule violations are raised as DomainError
// values; missing rows are reported as nil entities, never as errors.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chat-store/internal/database"
	"chat-store/internal/store"

	"github.com/google/uuid"
)

type SessionService struct {
	sessions *store.SessionStore
}

func NewSessionService(sessions *store.SessionStore) *SessionService {
	return &SessionService{sessions: sessions}
}

// CreateSession persists a new session for userID. An empty name falls
// back to the default; there is no uniqueness constraint on names.
func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID, name string, isFavorite bool) (*database.Session, error) {
	session := &database.Session{
		UserID:     userID,
		Name:       name,
		IsFavorite: isFavorite,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	slog.Info("session created", "session_id", session.ID, "user_id", userID, "name", session.Name)
	return session, nil
}

// GetUserSessions returns one page of the user's sessions together with
// the unbounded total. The pair is two independent reads; the total is
// best-effort under concurrent writes.
func (s *SessionService) GetUserSessions(ctx context.Context, userID uuid.UUID, skip, limit int) ([]database.Session, int64, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing sessions: %w", err)
	}
	total, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting sessions: %w", err)
	}
	return sessions, total, nil
}

func (s *SessionService) GetSessionByID(ctx context.Context, sessionID uuid.UUID) (*database.Session, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// UpdateSessionName renames the session. The name is trimmed before
// storing; a name that is blank after trimming fails with ErrBlankName.
// Returns nil if the session does not exist.
func (s *SessionService) UpdateSessionName(ctx context.Context, sessionID uuid.UUID, name string) (*database.Session, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		slog.Warn("invalid session name", "session_id", sessionID)
		return nil, ErrBlankName
	}

	session, err := s.sessions.Update(ctx, sessionID, map[string]any{"name": trimmed})
	if err != nil {
		return nil, fmt.Errorf("error updating session name: %w", err)
	}
	if session != nil {
		slog.Info("session name updated", "session_id", sessionID, "name", trimmed)
	}
	return session, nil
}

// ToggleFavorite unconditionally sets the favorite flag. Returns nil if
// the session does not exist.
func (s *SessionService) ToggleFavorite(ctx context.Context, sessionID uuid.UUID, isFavorite bool) (*database.Session, error) {
	session, err := s.sessions.Update(ctx, sessionID, map[string]any{"is_favorite": isFavorite})
	if err != nil {
		return nil, fmt.Errorf("error toggling favorite: %w", err)
	}
	if session != nil {
		slog.Info("session favorite toggled", "session_id", sessionID, "is_favorite", isFavorite)
	}
	return session, nil
}

// DeleteSession removes the session and cascades to its messages,
// reporting whether the session existed.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	existed, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("error deleting session: %w", err)
	}
	if existed {
		slog.Info("session deleted", "session_id", sessionID)
	}
	return existed, nil
}

func (s *SessionService) SessionExists(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return s.sessions.Exists(ctx, sessionID)
}
