// Package protocol defines the WebSocket message protocol between chat clients and the bot.
package protocol

import "github.com/ivandudin29/tg-notes-bot/internal/domain"

// Message types from client to bot
const (
	TypeHello  = "hello"
	TypeText   = "text"
	TypeAction = "action"
)

// Message types from bot to client
const (
	TypeHelloAck = "hello_ack"
	TypeReply    = "reply"
	TypeReminder = "reminder"
	TypeError    = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// HelloMessage binds a connection to a user.
type HelloMessage struct {
	BaseMessage
	APIKey     string            `json:"api_key,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage is sent after a successful hello.
type HelloAckMessage struct {
	BaseMessage
	ConnectionID string `json:"connection_id"`
}

// TextMessage carries free text typed by the user.
type TextMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ActionMessage carries a pressed button's action string.
type ActionMessage struct {
	BaseMessage
	Action string `json:"action"`
}

// ReplyMessage answers one text or action message.
type ReplyMessage struct {
	BaseMessage
	Outcome domain.Outcome  `json:"outcome"`
	Text    string          `json:"text"`
	Choices []domain.Choice `json:"choices,omitempty"`
}

// ReminderMessage is pushed when a task's deadline is near.
type ReminderMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ErrorMessage is sent when a message cannot be processed.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeHelloRequired  = "hello_required"
	ErrorCodeInternalError  = "internal_error"
)
