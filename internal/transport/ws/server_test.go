package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivandudin29/tg-notes-bot/internal/adapter/notify"
	"github.com/ivandudin29/tg-notes-bot/internal/config"
	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/hub"
	"github.com/ivandudin29/tg-notes-bot/internal/protocol"
	"github.com/ivandudin29/tg-notes-bot/internal/render"
	"github.com/ivandudin29/tg-notes-bot/internal/service"
	"github.com/ivandudin29/tg-notes-bot/internal/session"
	"github.com/ivandudin29/tg-notes-bot/internal/workflow"
	"github.com/ivandudin29/tg-notes-bot/tests/helpers"
)

func testConfig() *config.Config {
	return &config.Config{
		APIKey:         "secret",
		PingInterval:   time.Second,
		WriteTimeout:   time.Second,
		ReadTimeout:    5 * time.Second,
		MaxMessageSize: 65536,
	}
}

func startServer(t *testing.T) (string, *hub.Hub) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	text, err := render.NewLocalizer("en", time.UTC)
	require.NoError(t, err)
	engine := workflow.New(db, session.NewMemoryStore(0), workflow.WithLocalizer(text))
	svc := service.New(db, engine, service.WithLocalizer(text))

	h := hub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	e := echo.New()
	e.GET("/ws", NewServer(testConfig(), h, svc).HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", h
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func read(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func hello(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	send(t, conn, map[string]string{"type": "hello", "user_id": userID, "api_key": "secret"})
	ack := read(t, conn)
	require.Equal(t, protocol.TypeHelloAck, ack["type"])
	require.Equal(t, userID, ack["user_id"])
	require.NotEmpty(t, ack["connection_id"])
}

func TestHelloRequiredBeforeText(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)

	send(t, conn, map[string]string{"type": "text", "text": "hi", "request_id": "r1"})
	msg := read(t, conn)
	assert.Equal(t, protocol.TypeError, msg["type"])
	assert.Equal(t, protocol.ErrorCodeHelloRequired, msg["code"])
	assert.Equal(t, "r1", msg["request_id"])
}

func TestHelloRejectsBadAPIKey(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)

	send(t, conn, map[string]string{"type": "hello", "user_id": "u1", "api_key": "wrong"})
	msg := read(t, conn)
	assert.Equal(t, protocol.ErrorCodeUnauthorized, msg["code"])
}

func TestInvalidMessages(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, read(t, conn)["code"])

	send(t, conn, map[string]string{"type": "teleport"})
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, read(t, conn)["code"])

	send(t, conn, map[string]string{"type": "hello", "api_key": "secret"})
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, read(t, conn)["code"])
}

func TestWorkflowOverWebsocket(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)
	hello(t, conn, "u1")

	send(t, conn, map[string]string{"type": "action", "action": "new_project", "request_id": "r1"})
	msg := read(t, conn)
	assert.Equal(t, protocol.TypeReply, msg["type"])
	assert.Equal(t, "r1", msg["request_id"])
	assert.Equal(t, string(domain.OutcomePrompt), msg["outcome"])
	assert.Equal(t, "Enter the project name:", msg["text"])

	send(t, conn, map[string]string{"type": "text", "text": "Garden"})
	read(t, conn)
	send(t, conn, map[string]string{"type": "text", "text": "-"})
	msg = read(t, conn)
	assert.Equal(t, string(domain.OutcomeCompleted), msg["outcome"])
	assert.Equal(t, `Project "Garden" created.`, msg["text"])
}

func TestReminderReachesBoundClient(t *testing.T) {
	url, h := startServer(t)
	conn := dial(t, url)
	hello(t, conn, "u1")

	require.NoError(t, notify.NewHubNotifier(h).Send(context.Background(), "u1", "deadline soon"))

	raw := read(t, conn)
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	var msg protocol.ReminderMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, protocol.TypeReminder, msg.Type)
	assert.Equal(t, "deadline soon", msg.Text)
}

func TestDisconnectUnregisters(t *testing.T) {
	url, h := startServer(t)
	conn := dial(t, url)
	hello(t, conn, "u1")
	require.True(t, h.HasActiveConnections("u1"))
	assert.Equal(t, 1, h.UserCount())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, h.HasActiveConnections("u1"))
}
