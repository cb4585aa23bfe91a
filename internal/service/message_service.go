package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"chat-store/internal/database"
	"chat-store/internal/store"

	"github.com/google/uuid"
)

type MessageService struct {
	messages *store.MessageStore
	sessions *store.SessionStore
}

func NewMessageService(messages *store.MessageStore, sessions *store.SessionStore) *MessageService {
	return &MessageService{messages: messages, sessions: sessions}
}

// CreateMessage persists a message in the given session. The session
// existence check is mandatory and happens before any write; a missing
// session fails with ErrSessionNotFound. Fields the caller left unset stay
// at their schema defaults (status pending, timestamp now).
func (s *MessageService) CreateMessage(ctx context.Context, sessionID uuid.UUID, message *database.Message) (*database.Message, error) {
	exists, err := s.sessions.Exists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error checking session: %w", err)
	}
	if !exists {
		slog.Warn("session not found", "session_id", sessionID, "action", "create_message")
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	message.SessionID = sessionID
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("error creating message: %w", err)
	}

	slog.Info("message created",
		"message_id", message.ID, "session_id", sessionID,
		"sender", message.Sender, "content_length", len(message.Content))
	return message, nil
}

// GetSessionMessages returns one page of the session's messages in
// chronological order plus the unbounded total, failing with
// ErrSessionNotFound when the session is missing.
func (s *MessageService) GetSessionMessages(ctx context.Context, sessionID uuid.UUID, skip, limit int) ([]database.Message, int64, error) {
	exists, err := s.sessions.Exists(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("error checking session: %w", err)
	}
	if !exists {
		slog.Warn("session not found", "session_id", sessionID, "action", "get_session_messages")
		return nil, 0, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	messages, err := s.messages.ListBySession(ctx, sessionID, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing messages: %w", err)
	}
	total, err := s.messages.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting messages: %w", err)
	}
	return messages, total, nil
}

// GetMessageByID does not re-verify that the message's session still
// exists; the row itself is proof it existed at creation time.
func (s *MessageService) GetMessageByID(ctx context.Context, messageID uuid.UUID) (*database.Message, error) {
	return s.messages.GetByID(ctx, messageID)
}

// ResumeFailedMessage resets the session's latest message back to pending
// so the generation process can retry it. Only pending and failed messages
// are resumable; resuming clears any previous error. Returns the message
// id and its new status.
func (s *MessageService) ResumeFailedMessage(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, database.MessageStatus, error) {
	exists, err := s.sessions.Exists(ctx, sessionID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("error checking session: %w", err)
	}
	if !exists {
		slog.Warn("session not found", "session_id", sessionID, "action", "resume_failed_message")
		return uuid.Nil, "", fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	latest, err := s.messages.GetLatestBySession(ctx, sessionID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("error fetching latest message: %w", err)
	}
	if latest == nil {
		slog.Warn("no messages found", "session_id", sessionID, "action", "resume_failed_message")
		return uuid.Nil, "", fmt.Errorf("session %s: %w", sessionID, ErrNoMessages)
	}

	if latest.Status != database.StatusPending && latest.Status != database.StatusFailed {
		slog.Warn("message not resumable",
			"session_id", sessionID, "message_id", latest.ID, "status", latest.Status)
		return uuid.Nil, "", fmt.Errorf("message %s has status %s: %w", latest.ID, latest.Status, ErrNotResumable)
	}

	updated, err := s.messages.Update(ctx, latest.ID, map[string]any{
		"status":        database.StatusPending,
		"error_message": nil,
	})
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("error resuming message: %w", err)
	}
	if updated == nil {
		// Deleted between the read and the write; a benign race.
		return uuid.Nil, "", fmt.Errorf("session %s: %w", sessionID, ErrNoMessages)
	}

	slog.Info("message resumed", "session_id", sessionID, "message_id", updated.ID)
	return updated.ID, updated.Status, nil
}

// MessageUpdate carries the fields the generation process may rewrite on a
// message. Nil fields are left untouched; an empty string clears the
// nullable columns.
type MessageUpdate struct {
	Content        *string
	Status         *database.MessageStatus
	PartialContent *string
	ErrorMessage   *string
}

// UpdateMessage applies a sparse update from the generation process; no
// state-machine validation is applied. Returns nil if the message does not
// exist.
func (s *MessageService) UpdateMessage(ctx context.Context, messageID uuid.UUID, update MessageUpdate) (*database.Message, error) {
	fields := map[string]any{}
	if update.Content != nil {
		fields["content"] = *update.Content
	}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.PartialContent != nil {
		fields["partial_content"] = sql.NullString{String: *update.PartialContent, Valid: *update.PartialContent != ""}
	}
	if update.ErrorMessage != nil {
		fields["error_message"] = sql.NullString{String: *update.ErrorMessage, Valid: *update.ErrorMessage != ""}
	}

	message, err := s.messages.Update(ctx, messageID, fields)
	if err != nil {
		return nil, fmt.Errorf("error updating message: %w", err)
	}
	if message != nil {
		slog.Info("message updated", "message_id", messageID)
	}
	return message, nil
}

// UpdateMessageStatus is a direct setter used by the generation process;
// no state-machine validation is applied. An empty errorMessage clears the
// stored error.
func (s *MessageService) UpdateMessageStatus(ctx context.Context, messageID uuid.UUID, status database.MessageStatus, errorMessage string) (*database.Message, error) {
	message, err := s.messages.Update(ctx, messageID, map[string]any{
		"status":        status,
		"error_message": sql.NullString{String: errorMessage, Valid: errorMessage != ""},
	})
	if err != nil {
		return nil, fmt.Errorf("error updating message status: %w", err)
	}
	if message != nil {
		slog.Info("message status updated", "message_id", messageID, "status", status)
	}
	return message, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, messageID uuid.UUID) (bool, error) {
	existed, err := s.messages.Delete(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("error deleting message: %w", err)
	}
	if existed {
		slog.Info("message deleted", "message_id", messageID)
	}
	return existed, nil
}

func (s *MessageService) SessionHasMessages(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return s.messages.ExistsInSession(ctx, sessionID)
}
