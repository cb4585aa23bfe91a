// Package api holds the wire types of the chat-store HTTP API.
package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name,omitempty"`
	IsFavorite bool      `json:"is_favorite,omitempty"`
}

type UpdateSessionRequest struct {
	Name *string `json:"name"`
}

type Session struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
	Total    int64     `json:"total"`
}

type CreateMessageRequest struct {
	Sender  string         `json:"sender"`
	Content string         `json:"content"`
	Context map[string]any `json:"context,omitempty"`
}

type Message struct {
	ID             uuid.UUID      `json:"id"`
	SessionID      uuid.UUID      `json:"session_id"`
	Sender         string         `json:"sender"`
	Content        string         `json:"content"`
	Context        map[string]any `json:"context,omitempty"`
	Status         string         `json:"status"`
	PartialContent *string        `json:"partial_content,omitempty"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type MessageListResponse struct {
	Messages []Message `json:"messages"`
	Total    int64     `json:"total"`
}

type ResumeResponse struct {
	MessageID uuid.UUID `json:"message_id"`
	Status    string    `json:"status"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	StartTime   string `json:"start_time"`
	CurrentTime string `json:"current_time"`
	Uptime      string `json:"uptime"`
}
