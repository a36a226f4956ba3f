package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/nyumbalink/property_chat/handlers"
	"github.com/nyumbalink/property_chat/routes"
	"github.com/nyumbalink/property_chat/services"
	ws "github.com/nyumbalink/property_chat/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

func setupApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock) {
	t.Setenv("JWT_SECRET", testSecret)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	hub := ws.NewHub()
	pending := ws.NewPendingQueue(0, ws.DropOldest)
	svc := services.NewConversationService(gormDB)
	dispatcher := ws.NewDispatcher(hub, pending, svc)
	h := handlers.NewMessagingHandler(svc, hub, pending, dispatcher)

	app := fiber.New()
	routes.MessagingRoutes(app, h)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return app, mock
}

func authToken(t *testing.T, userID uuid.UUID) string {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func jsonRequest(t *testing.T, method, target, token string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func conversationRows(id, user1, user2 uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user1_id", "user2_id", "property_id",
		"user1_unread_count", "user2_unread_count", "last_message_text",
		"created_at", "updated_at",
	}).AddRow(id.String(), user1.String(), user2.String(), nil, 0, 0, "", now, now)
}

func TestConversationRoutesRejectMissingToken(t *testing.T) {
	app, _ := setupApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/conversations", "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateConversationRejectsSelf(t *testing.T) {
	app, _ := setupApp(t)
	userID := uuid.New()

	req := jsonRequest(t, http.MethodPost, "/api/v1/conversations", authToken(t, userID),
		fiber.Map{"recipient_id": userID.String()})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateConversationValidatesRecipient(t *testing.T) {
	app, _ := setupApp(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/conversations", authToken(t, uuid.New()),
		fiber.Map{"recipient_id": "not-a-uuid"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMarkReadUnknownConversationIsNotFound(t *testing.T) {
	app, mock := setupApp(t)
	userID := uuid.New()
	convID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "conversations"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := jsonRequest(t, http.MethodPut, "/api/v1/conversations/"+convID.String()+"/read", authToken(t, userID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessageRequiresContent(t *testing.T) {
	app, _ := setupApp(t)
	convID := uuid.New()

	req := jsonRequest(t, http.MethodPost, "/api/v1/conversations/"+convID.String()+"/messages",
		authToken(t, uuid.New()), fiber.Map{"content": ""})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessageForbiddenForNonParticipant(t *testing.T) {
	app, mock := setupApp(t)
	convID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "conversations"`)).
		WillReturnRows(conversationRows(convID, uuid.New(), uuid.New()))

	req := jsonRequest(t, http.MethodPost, "/api/v1/conversations/"+convID.String()+"/messages",
		authToken(t, uuid.New()), fiber.Map{"content": "hello"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetMessagesMarksConversationRead(t *testing.T) {
	app, mock := setupApp(t)
	userID := uuid.New()
	otherID := uuid.New()
	convID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "conversations"`)).
		WillReturnRows(conversationRows(convID, userID, otherID))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "messages"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "sender_id", "content", "created_at"}).
			AddRow(uuid.New().String(), convID.String(), otherID.String(), "hello", now))
	mock.ExpectExec(`UPDATE "conversations" SET "user1_unread_count"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := jsonRequest(t, http.MethodGet, "/api/v1/conversations/"+convID.String()+"/messages",
		authToken(t, userID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msgs []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0]["content"])
}
