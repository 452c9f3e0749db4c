// Package main provides a terminal chat client for the planner bot's websocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ivandudin29/tg-notes-bot/internal/protocol"
)

// Client represents a WebSocket client.
type Client struct {
	conn   *websocket.Conn
	userID string
	done   chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello binds the connection to userID and waits for hello_ack.
func (c *Client) SendHello(userID, apiKey string) error {
	msg := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{
			Type:   protocol.TypeHello,
			Ts:     time.Now().UnixMilli(),
			UserID: userID,
		},
		APIKey: apiKey,
		ClientMeta: map[string]string{
			"client": "planbot-chat",
		},
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	if base.Type == protocol.TypeError {
		var errMsg protocol.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if base.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.userID = base.UserID
	return nil
}

// SendText sends free text.
func (c *Client) SendText(text string) error {
	return c.conn.WriteJSON(protocol.TextMessage{
		BaseMessage: c.base(protocol.TypeText),
		Text:        text,
	})
}

// SendAction sends a button press.
func (c *Client) SendAction(action string) error {
	return c.conn.WriteJSON(protocol.ActionMessage{
		BaseMessage: c.base(protocol.TypeAction),
		Action:      action,
	})
}

func (c *Client) base(msgType string) protocol.BaseMessage {
	return protocol.BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		RequestID: "req_" + uuid.New().String()[:8],
		UserID:    c.userID,
	}
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			printMessage(data)
		}
	}
}

func printMessage(data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		log.Printf("Unmarshal error: %v", err)
		return
	}

	switch base.Type {
	case protocol.TypeReply:
		var msg protocol.ReplyMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\n%s\n", msg.Text)
		for _, choice := range msg.Choices {
			fmt.Printf("  [%s] /action %s\n", choice.Label, choice.Action)
		}
	case protocol.TypeReminder:
		var msg protocol.ReminderMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\n* %s\n", msg.Text)
	case protocol.TypeError:
		var msg protocol.ErrorMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\n[error] %s: %s\n", msg.Code, msg.Message)
	default:
		var pretty map[string]interface{}
		json.Unmarshal(data, &pretty)
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("\n[%s] Received:\n%s\n", base.Type, string(formatted))
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8090/ws", "WebSocket server address")
	apiKey := flag.String("api-key", "", "API key for authentication")
	userID := flag.String("user", "", "User ID to chat as")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *userID == "" {
		log.Fatalf("-user is required")
	}

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*userID, *apiKey); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Signed in as %s\n", client.userID)
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /action <action> to press a button, /quit to exit")

	go client.ReadMessages()

	if err := client.SendAction("start"); err != nil {
		log.Printf("Send error: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			if action, ok := strings.CutPrefix(input, "/action "); ok {
				err = client.SendAction(strings.TrimSpace(action))
			} else {
				err = client.SendText(input)
			}
			if err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
