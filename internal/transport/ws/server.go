// Package ws provides the websocket chat endpoint.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ivandudin29/tg-notes-bot/internal/config"
	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/hub"
	"github.com/ivandudin29/tg-notes-bot/internal/protocol"
	"github.com/ivandudin29/tg-notes-bot/internal/service"
)

const updateTimeout = 30 * time.Second

// Updater answers chat updates.
type Updater interface {
	HandleUpdate(ctx context.Context, u service.Update) (domain.Reply, error)
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	updates  Updater
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, updates Updater) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		updates: updates,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade websocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the connection. Messages of one connection
// are handled in order on this goroutine.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeText:
		var msg protocol.TextMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "invalid text message")
			return
		}
		s.handleUpdate(conn, base.RequestID, service.Update{Text: msg.Text})
	case protocol.TypeAction:
		var msg protocol.ActionMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Action == "" {
			s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "invalid action message")
			return
		}
		s.handleUpdate(conn, base.RequestID, service.Update{Action: msg.Action})
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleHello binds the connection to a user.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	// Validate API key if configured
	if s.cfg.APIKey != "" && msg.APIKey != s.cfg.APIKey {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}

	userID := strings.TrimSpace(msg.UserID)
	if userID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "user_id is required")
		return
	}

	s.hub.BindUser(conn, userID)

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
			UserID:    userID,
		},
		ConnectionID: conn.ID,
	}
	s.hub.SendJSONToConnection(conn, ack)

	log.Printf("Hello handshake completed for user %s on connection %s", userID, conn.ID)
}

// handleUpdate forwards text or a button press to the router and sends the reply.
func (s *Server) handleUpdate(conn *hub.Connection, requestID string, u service.Update) {
	if conn.UserID == "" {
		s.sendError(conn, requestID, protocol.ErrorCodeHelloRequired, "must send hello first")
		return
	}
	u.UserID = conn.UserID

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	reply, err := s.updates.HandleUpdate(ctx, u)
	if errors.Is(err, domain.ErrInvalidInput) {
		s.sendError(conn, requestID, protocol.ErrorCodeInvalidMessage, err.Error())
		return
	}
	if err != nil {
		log.Printf("ERROR: update for user %s failed: %v", conn.UserID, err)
		s.sendError(conn, requestID, protocol.ErrorCodeInternalError, "internal error")
		return
	}

	msg := protocol.ReplyMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeReply,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			UserID:    conn.UserID,
		},
		Outcome: reply.Outcome,
		Text:    reply.Text,
		Choices: reply.Choices,
	}
	if err := s.hub.SendJSONToConnection(conn, msg); err != nil {
		log.Printf("WARN: failed to queue reply on connection %s: %v", conn.ID, err)
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			UserID:    conn.UserID,
		},
		Code:    code,
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}
