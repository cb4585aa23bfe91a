// Package api exposes the session and message services over HTTP. The
// boundary owns request parsing and validation, auth, per-route rate
// limits, and the mapping of domain errors (400) and absence (404) onto
// status codes; business rules live in the service layer.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"chat-store/internal/database"
	"chat-store/internal/service"
	"chat-store/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
	maxContentLength = 10000
)

// RateLimits holds per-route requests-per-minute budgets. A zero budget
// disables limiting for that route, which the tests rely on.
type RateLimits struct {
	CreateSession  int
	ListSessions   int
	UpdateSession  int
	ToggleFavorite int
	DeleteSession  int
	CreateMessage  int
	GetMessages    int
	ResumeMessage  int
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		CreateSession:  10,
		ListSessions:   30,
		UpdateSession:  20,
		ToggleFavorite: 20,
		DeleteSession:  10,
		CreateMessage:  50,
		GetMessages:    100,
		ResumeMessage:  5,
	}
}

type ChatStoreService struct {
	sessions *service.SessionService
	messages *service.MessageService
	limits   RateLimits
}

func NewChatStoreService(sessions *service.SessionService, messages *service.MessageService, limits RateLimits) *ChatStoreService {
	return &ChatStoreService{sessions: sessions, messages: messages, limits: limits}
}

func (s *ChatStoreService) AddRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.With(s.limit(s.limits.CreateSession)).Post("/", RestHandlerStatus(http.StatusCreated, s.CreateSession))
		r.With(s.limit(s.limits.ListSessions)).Get("/", RestHandler(s.ListSessions))
		r.Route("/{session_id}", func(r chi.Router) {
			r.With(s.limit(s.limits.UpdateSession)).Put("/", RestHandler(s.UpdateSession))
			r.With(s.limit(s.limits.ToggleFavorite)).Patch("/favorite", RestHandler(s.ToggleFavorite))
			r.With(s.limit(s.limits.DeleteSession)).Delete("/", RestHandlerStatus(http.StatusNoContent, s.DeleteSession))
			r.With(s.limit(s.limits.CreateMessage)).Post("/messages", RestHandlerStatus(http.StatusCreated, s.CreateMessage))
			r.With(s.limit(s.limits.GetMessages)).Get("/messages", RestHandler(s.ListMessages))
			r.With(s.limit(s.limits.GetMessages)).Get("/messages/{message_id}", RestHandler(s.GetMessage))
			r.With(s.limit(s.limits.ResumeMessage)).Post("/messages/{message_id}/resume", RestHandler(s.ResumeMessage))
		})
	})
}

func (s *ChatStoreService) limit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

func (s *ChatStoreService) CreateSession(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateSessionRequest](r)
	if err != nil {
		return nil, err
	}
	if req.UserID == uuid.Nil {
		return nil, CodedErrorf(http.StatusBadRequest, "user_id is required")
	}

	session, err := s.sessions.CreateSession(r.Context(), req.UserID, req.Name, req.IsFavorite)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	return toApiSession(*session), nil
}

func (s *ChatStoreService) ListSessions(r *http.Request) (any, error) {
	rawUserID := r.URL.Query().Get("user_id")
	if rawUserID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "user_id query parameter is required")
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid user_id '%s'", rawUserID)
	}

	skip, limit, err := parsePageWindow(r)
	if err != nil {
		return nil, err
	}

	sessions, total, err := s.sessions.GetUserSessions(r.Context(), userID, skip, limit)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	return api.SessionListResponse{Sessions: toApiSessions(sessions), Total: total}, nil
}

func (s *ChatStoreService) UpdateSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.UpdateSessionRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Name == nil {
		return nil, CodedErrorf(http.StatusBadRequest, "name is required for update")
	}

	session, err := s.sessions.UpdateSessionName(r.Context(), sessionID, *req.Name)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	if session == nil {
		return nil, CodedErrorf(http.StatusNotFound, "session not found")
	}
	return toApiSession(*session), nil
}

func (s *ChatStoreService) ToggleFavorite(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	isFavorite, err := queryBool(r, "is_favorite")
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.ToggleFavorite(r.Context(), sessionID, isFavorite)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	if session == nil {
		return nil, CodedErrorf(http.StatusNotFound, "session not found")
	}
	return toApiSession(*session), nil
}

func (s *ChatStoreService) DeleteSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	existed, err := s.sessions.DeleteSession(r.Context(), sessionID)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	if !existed {
		return nil, CodedErrorf(http.StatusNotFound, "session not found")
	}
	return nil, nil
}

func (s *ChatStoreService) CreateMessage(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.CreateMessageRequest](r)
	if err != nil {
		return nil, err
	}

	sender, err := database.ParseSender(req.Sender)
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}
	if length := utf8.RuneCountInString(req.Content); length < 1 || length > maxContentLength {
		return nil, CodedErrorf(http.StatusBadRequest, "content must be between 1 and %d characters", maxContentLength)
	}
	context, err := contextDocument(req.Context)
	if err != nil {
		return nil, err
	}

	if err := s.requireSession(r, sessionID); err != nil {
		return nil, err
	}

	message := &database.Message{
		Sender:  sender,
		Content: req.Content,
		Context: context,
	}
	created, err := s.messages.CreateMessage(r.Context(), sessionID, message)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	return toApiMessage(*created)
}

func (s *ChatStoreService) ListMessages(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	skip, limit, err := parsePageWindow(r)
	if err != nil {
		return nil, err
	}

	if err := s.requireSession(r, sessionID); err != nil {
		return nil, err
	}

	messages, total, err := s.messages.GetSessionMessages(r.Context(), sessionID, skip, limit)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	converted, err := toApiMessages(messages)
	if err != nil {
		return nil, err
	}
	return api.MessageListResponse{Messages: converted, Total: total}, nil
}

func (s *ChatStoreService) GetMessage(r *http.Request) (any, error) {
	sessionID, messageID, err := sessionMessageParams(r)
	if err != nil {
		return nil, err
	}

	if err := s.requireSession(r, sessionID); err != nil {
		return nil, err
	}

	message, err := s.messages.GetMessageByID(r.Context(), messageID)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	if message == nil || message.SessionID != sessionID {
		return nil, CodedErrorf(http.StatusNotFound, "message %s not found in session %s", messageID, sessionID)
	}
	return toApiMessage(*message)
}

// ResumeMessage resets the session's latest message to pending. The
// message id in the URL is only validated to exist in the session; the
// resume always targets the latest message.
func (s *ChatStoreService) ResumeMessage(r *http.Request) (any, error) {
	sessionID, messageID, err := sessionMessageParams(r)
	if err != nil {
		return nil, err
	}

	if err := s.requireSession(r, sessionID); err != nil {
		return nil, err
	}

	message, err := s.messages.GetMessageByID(r.Context(), messageID)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	if message == nil || message.SessionID != sessionID {
		return nil, CodedErrorf(http.StatusNotFound, "message %s not found in session %s", messageID, sessionID)
	}

	resumedID, status, err := s.messages.ResumeFailedMessage(r.Context(), sessionID)
	if err != nil {
		return nil, domainOrInternal(err)
	}
	return api.ResumeResponse{MessageID: resumedID, Status: string(status)}, nil
}

// HealthHandler is a simple, fast liveness probe reporting uptime.
func HealthHandler(startTime time.Time) http.HandlerFunc {
	return RestHandler(func(r *http.Request) (any, error) {
		now := time.Now()
		uptime := now.Sub(startTime).Round(time.Second)
		return api.HealthResponse{
			Status:      "OK",
			StartTime:   startTime.Format(time.RFC3339),
			CurrentTime: now.Format(time.RFC3339),
			Uptime:      uptime.String(),
		}, nil
	})
}

func (s *ChatStoreService) requireSession(r *http.Request, sessionID uuid.UUID) error {
	exists, err := s.sessions.SessionExists(r.Context(), sessionID)
	if err != nil {
		return CodedErrorf(http.StatusInternalServerError, "error checking session: %v", err)
	}
	if !exists {
		return CodedErrorf(http.StatusNotFound, "session %s not found", sessionID)
	}
	return nil
}

func sessionMessageParams(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	messageID, err := URLParamUUID(r, "message_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return sessionID, messageID, nil
}

type pageQuery struct {
	Skip  int  `schema:"skip"`
	Limit *int `schema:"limit"`
}

func parsePageWindow(r *http.Request) (int, int, error) {
	query, err := ParseRequestQueryParams[pageQuery](r)
	if err != nil {
		return 0, 0, err
	}
	if query.Skip < 0 {
		return 0, 0, CodedErrorf(http.StatusBadRequest, "skip must be >= 0")
	}
	limit := defaultPageLimit
	if query.Limit != nil {
		limit = *query.Limit
	}
	if limit < 1 || limit > maxPageLimit {
		return 0, 0, CodedErrorf(http.StatusBadRequest, "limit must be between 1 and %d", maxPageLimit)
	}
	return query.Skip, limit, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	switch raw {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	case "":
		return false, CodedErrorf(http.StatusBadRequest, "%s query parameter is required", key)
	default:
		return false, CodedErrorf(http.StatusBadRequest, "invalid boolean '%s' for %s", raw, key)
	}
}

// domainOrInternal maps a service failure onto the boundary's taxonomy:
// absence becomes a 404, other domain-rule violations become 400s, and
// everything else is an internal error.
func domainOrInternal(err error) error {
	var derr *service.DomainError
	if errors.As(err, &derr) {
		if errors.Is(err, service.ErrSessionNotFound) {
			return CodedError(http.StatusNotFound, fmt.Errorf("%s", derr.Reason))
		}
		return CodedError(http.StatusBadRequest, fmt.Errorf("%s", derr.Reason))
	}
	return CodedError(http.StatusInternalServerError, err)
}
