package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "chat-store/internal/api"
	"chat-store/internal/database"
	"chat-store/internal/service"
	"chat-store/internal/store"
	"chat-store/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testAPIKey = "test-api-key-123"

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func createRouter(db *gorm.DB, limits backend.RateLimits) chi.Router {
	sessions := store.NewSessionStore(db)
	messages := store.NewMessageStore(db)
	handler := backend.NewChatStoreService(
		service.NewSessionService(sessions),
		service.NewMessageService(messages, sessions),
		limits,
	)

	router := chi.NewRouter()
	router.Get("/health", backend.HealthHandler(time.Now()))
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(backend.BearerAuth(testAPIKey))
		handler.AddRoutes(r)
	})
	return router
}

func doRequest(t *testing.T, router chi.Router, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestAuthRequired(t *testing.T) {
	router := createRouter(createDB(t), backend.RateLimits{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/?user_id="+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/?user_id="+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthIsUnauthenticated(t *testing.T) {
	router := createRouter(createDB(t), backend.RateLimits{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	health := decode[api.HealthResponse](t, rec)
	assert.Equal(t, "OK", health.Status)
}

func TestCreateSession(t *testing.T) {
	router := createRouter(createDB(t), backend.RateLimits{})
	userID := uuid.New()

	rec := doRequest(t, router, http.MethodPost, "/api/v1/sessions/", api.CreateSessionRequest{UserID: userID})
	assert.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	session := decode[api.Session](t, rec)
	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, "New Chat", session.Name)
	assert.False(t, session.IsFavorite)
	assert.False(t, session.CreatedAt.IsZero())
}

func TestCreateSessionRequiresUserID(t *testing.T) {
	router := createRouter(createDB(t), backend.RateLimits{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/sessions/", api.CreateSessionRequest{Name: "no owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessions(t *testing.T) {
	userID := uuid.New()
	favorite := uuid.New()
	db := createDB(t,
		&database.Session{ID: uuid.New(), UserID: userID, Name: "recent", UpdatedAt: time.Now().UTC()},
		&database.Session{ID: favorite, UserID: userID, Name: "pinned", IsFavorite: true, UpdatedAt: time.Now().UTC().Add(-time.Hour)},
		&database.Session{ID: uuid.New(), UserID: uuid.New(), Name: "other user"},
	)
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/sessions/?user_id="+userID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	list := decode[api.SessionListResponse](t, rec)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, favorite, list.Sessions[0].ID)

	// Window applies to the page, not the total.
	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/v1/sessions/?user_id=%s&skip=1&limit=1", userID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	list = decode[api.SessionListResponse](t, rec)
	assert.Len(t, list.Sessions, 1)
	assert.Equal(t, int64(2), list.Total)
}

func TestListSessionsValidation(t *testing.T) {
	router := createRouter(createDB(t), backend.RateLimits{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/sessions/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/sessions/?user_id=not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/v1/sessions/?user_id=%s&limit=5000", uuid.New()), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenameSession(t *testing.T) {
	sessionID := uuid.New()
	db := createDB(t, &database.Session{ID: sessionID, UserID: uuid.New(), Name: "before"})
	router := createRouter(db, backend.RateLimits{})

	name := "after"
	rec := doRequest(t, router, http.MethodPut, "/api/v1/sessions/"+sessionID.String(), api.UpdateSessionRequest{Name: &name})
	assert.Equal(t, http.StatusOK, rec.Code)
	session := decode[api.Session](t, rec)
	assert.Equal(t, "after", session.Name)

	blank := "   "
	rec = doRequest(t, router, http.MethodPut, "/api/v1/sessions/"+sessionID.String(), api.UpdateSessionRequest{Name: &blank})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/sessions/"+sessionID.String(), api.UpdateSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/sessions/"+uuid.NewString(), api.UpdateSessionRequest{Name: &name})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleFavorite(t *testing.T) {
	sessionID := uuid.New()
	db := createDB(t, &database.Session{ID: sessionID, UserID: uuid.New(), Name: "n"})
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodPatch, "/api/v1/sessions/"+sessionID.String()+"/favorite?is_favorite=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	session := decode[api.Session](t, rec)
	assert.True(t, session.IsFavorite)

	rec = doRequest(t, router, http.MethodPatch, "/api/v1/sessions/"+sessionID.String()+"/favorite", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPatch, "/api/v1/sessions/"+uuid.NewString()+"/favorite?is_favorite=true", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	sessionID := uuid.New()
	db := createDB(t, &database.Session{ID: sessionID, UserID: uuid.New(), Name: "n"})
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/sessions/"+sessionID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/sessions/"+sessionID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMessage(t *testing.T) {
	sessionID := uuid.New()
	db := createDB(t, &database.Session{ID: sessionID, UserID: uuid.New(), Name: "n"})
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/messages", api.CreateMessageRequest{
		Sender:  "user",
		Content: "what does the contract say?",
		Context: map[string]any{"source": "doc-7", "score": 0.92},
	})
	assert.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	message := decode[api.Message](t, rec)
	assert.Equal(t, sessionID, message.SessionID)
	assert.Equal(t, "user", message.Sender)
	assert.Equal(t, "pending", message.Status)
	assert.Equal(t, "doc-7", message.Context["source"])
	assert.False(t, message.Timestamp.IsZero())
}

func TestCreateMessageValidation(t *testing.T) {
	sessionID := uuid.New()
	db := createDB(t, &database.Session{ID: sessionID, UserID: uuid.New(), Name: "n"})
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/messages", api.CreateMessageRequest{
		Sender: "robot", Content: "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/messages", api.CreateMessageRequest{
		Sender: "user", Content: "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long := bytes.Repeat([]byte("x"), 10001)
	rec = doRequest(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/messages", api.CreateMessageRequest{
		Sender: "user", Content: string(long),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/messages", api.CreateMessageRequest{
		Sender: "user", Content: "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMessages(t *testing.T) {
	sessionID := uuid.New()
	now := time.Now().UTC()
	db := createDB(t,
		&database.Session{ID: sessionID, UserID: uuid.New(), Name: "n"},
		&database.Message{ID: uuid.New(), SessionID: sessionID, Sender: database.SenderAI, Content: "second", Status: database.StatusComplete, Timestamp: now.Add(time.Minute)},
		&database.Message{ID: uuid.New(), SessionID: sessionID, Sender: database.SenderUser, Content: "first", Status: database.StatusComplete, Timestamp: now},
	)
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID.String()+"/messages", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	list := decode[api.MessageListResponse](t, rec)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, "first", list.Messages[0].Content)
	assert.Equal(t, "second", list.Messages[1].Content)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/sessions/"+uuid.NewString()+"/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMessage(t *testing.T) {
	sessionID := uuid.New()
	otherSession := uuid.New()
	messageID := uuid.New()
	db := createDB(t,
		&database.Session{ID: sessionID, UserID: uuid.New(), Name: "n"},
		&database.Session{ID: otherSession, UserID: uuid.New(), Name: "m"},
		&database.Message{ID: messageID, SessionID: sessionID, Sender: database.SenderUser, Content: "hi", Status: database.StatusPending, Timestamp: time.Now().UTC()},
	)
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/messages/%s", sessionID, messageID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	message := decode[api.Message](t, rec)
	assert.Equal(t, messageID, message.ID)

	// The message exists but belongs to a different session.
	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/messages/%s", otherSession, messageID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/messages/%s", sessionID, uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeMessage(t *testing.T) {
	sessionID := uuid.New()
	messageID := uuid.New()
	db := createDB(t,
		&database.Session{ID: sessionID, UserID: uuid.New(), Name: "n"},
		&database.Message{
			ID: messageID, SessionID: sessionID, Sender: database.SenderAI, Content: "r",
			Status:    database.StatusFailed,
			Timestamp: time.Now().UTC(),
		},
	)
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/messages/%s/resume", sessionID, messageID), nil)
	assert.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	resumed := decode[api.ResumeResponse](t, rec)
	assert.Equal(t, messageID, resumed.MessageID)
	assert.Equal(t, "pending", resumed.Status)
}

func TestResumeNotResumable(t *testing.T) {
	sessionID := uuid.New()
	messageID := uuid.New()
	db := createDB(t,
		&database.Session{ID: sessionID, UserID: uuid.New(), Name: "n"},
		&database.Message{ID: messageID, SessionID: sessionID, Sender: database.SenderAI, Content: "r", Status: database.StatusComplete, Timestamp: time.Now().UTC()},
	)
	router := createRouter(db, backend.RateLimits{})

	rec := doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/messages/%s/resume", sessionID, messageID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitEnforced(t *testing.T) {
	router := createRouter(createDB(t), backend.RateLimits{CreateSession: 2})
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/sessions/", api.CreateSessionRequest{UserID: userID})
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, router, http.MethodPost, "/api/v1/sessions/", api.CreateSessionRequest{UserID: userID})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
