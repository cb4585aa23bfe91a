package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"chat-store/internal/database"
	"chat-store/pkg/api"

	"gorm.io/datatypes"
)

func toApiSession(session database.Session) api.Session {
	return api.Session{
		ID:         session.ID,
		UserID:     session.UserID,
		Name:       session.Name,
		IsFavorite: session.IsFavorite,
		CreatedAt:  session.CreatedAt,
		UpdatedAt:  session.UpdatedAt,
	}
}

func toApiSessions(sessions []database.Session) []api.Session {
	out := make([]api.Session, len(sessions))
	for i, session := range sessions {
		out[i] = toApiSession(session)
	}
	return out
}

func toApiMessage(message database.Message) (api.Message, error) {
	var context map[string]any
	if len(message.Context) > 0 {
		if err := json.Unmarshal(message.Context, &context); err != nil {
			return api.Message{}, CodedErrorf(http.StatusInternalServerError, "invalid context document on message %s", message.ID)
		}
	}

	return api.Message{
		ID:             message.ID,
		SessionID:      message.SessionID,
		Sender:         string(message.Sender),
		Content:        message.Content,
		Context:        context,
		Status:         string(message.Status),
		PartialContent: nullableString(message.PartialContent),
		ErrorMessage:   nullableString(message.ErrorMessage),
		Timestamp:      message.Timestamp,
		CreatedAt:      message.CreatedAt,
		UpdatedAt:      message.UpdatedAt,
	}, nil
}

func toApiMessages(messages []database.Message) ([]api.Message, error) {
	out := make([]api.Message, len(messages))
	for i, message := range messages {
		converted, err := toApiMessage(message)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

func contextDocument(context map[string]any) (datatypes.JSON, error) {
	if context == nil {
		return nil, nil
	}
	raw, err := json.Marshal(context)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to encode context document")
	}
	return datatypes.JSON(raw), nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
